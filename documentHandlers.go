package main

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"bitbucket.org/lestage/erp_backend/workflow"
	"github.com/gin-gonic/gin"
)

type controllerFunc func() *workflow.DocumentController

func registerDocumentRoutes(api *gin.RouterGroup, controller controllerFunc) {
	docs := api.Group("/:module/documents")
	docs.POST("", CommitDocumentHandler(controller))
	docs.GET("", ListDocumentsHandler(controller))
	docs.GET("/export", ExportDocumentsHandler(controller))
	docs.GET("/:id", GetDocumentHandler(controller))
	docs.PUT("/:id", UpdateDocumentHandler(controller))
	docs.DELETE("/:id", DeleteDocumentHandler(controller))
	docs.POST("/:id/lines", SaveLineHandler(controller))
	docs.DELETE("/:id/lines/:lineNo", DeleteLineHandler(controller))
	docs.POST("/:id/recompute", RecomputeTotalsHandler(controller))
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrDocumentNotFound),
		errors.Is(err, models.ErrLineNotFound),
		errors.Is(err, models.ErrUnknownModule),
		errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case utils.IsValidationError(err),
		errors.Is(err, models.ErrMissingAvailability),
		errors.Is(err, models.ErrNoValidLines),
		errors.Is(err, models.ErrCounterPartyNotFound),
		errors.Is(err, models.ErrDocumentTypeNotPermitted),
		errors.Is(err, models.ErrSourceLineMismatch),
		errors.Is(err, models.ErrSimplifiedHasNoLines),
		errors.Is(err, models.ErrSimplifiedNotAllowed),
		errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrInactiveTaxRate),
		errors.Is(err, utils.ErrInvalidQuantity),
		errors.Is(err, utils.ErrInvalidDiscount),
		errors.Is(err, utils.ErrInvalidTaxRate),
		errors.Is(err, utils.ErrNegativePrice):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrMisconfiguredReference):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(status, gin.H{"error": "validation failed", "fields": validationErr.Fields})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func moduleParam(c *gin.Context) models.ModuleName {
	return models.ModuleName(strings.ToLower(c.Param("module")))
}

func CommitDocumentHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewDocument
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()
		if key := strings.TrimSpace(c.GetHeader("Idempotency-Key")); key != "" {
			if len(key) > 100 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key too long"})
				return
			}
			ctx = utils.SetIdempotencyKeyInContext(ctx, key)
		}
		header, err := controller().Commit(ctx, moduleParam(c), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, header)
	}
}

func UpdateDocumentHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewDocument
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		header, err := controller().Update(c.Request.Context(), moduleParam(c), c.Param("id"), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, header)
	}
}

func GetDocumentHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := controller().Get(c.Request.Context(), moduleParam(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, header)
	}
}

func ListDocumentsHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := documentFilterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		headers, err := controller().List(c.Request.Context(), moduleParam(c), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": headers})
	}
}

func ExportDocumentsHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := documentFilterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var buf bytes.Buffer
		if err := controller().Export(c.Request.Context(), moduleParam(c), filter, &buf); err != nil {
			respondError(c, err)
			return
		}
		filename := string(moduleParam(c)) + ".xlsx"
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

func DeleteDocumentHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := controller().Delete(c.Request.Context(), moduleParam(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func SaveLineHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewDocumentLine
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		header, err := controller().SaveLine(c.Request.Context(), moduleParam(c), c.Param("id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, header)
	}
}

func DeleteLineHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		lineNo, err := strconv.Atoi(c.Param("lineNo"))
		if err != nil || lineNo <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid line number"})
			return
		}
		header, err := controller().DeleteLine(c.Request.Context(), moduleParam(c), c.Param("id"), lineNo)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, header)
	}
}

func RecomputeTotalsHandler(controller controllerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := controller().RecomputeTotals(c.Request.Context(), moduleParam(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, header)
	}
}

func documentFilterFromQuery(c *gin.Context) (models.DocumentFilter, error) {
	var filter models.DocumentFilter
	var err error
	if v := c.Query("counter_party_id"); v != "" {
		if filter.CounterPartyId, err = strconv.Atoi(v); err != nil {
			return filter, errors.New("invalid counter_party_id")
		}
	}
	filter.DocumentTypeCode = c.Query("document_type_code")
	if v := c.Query("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, errors.New("invalid from date")
		}
		filter.FromDate = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, errors.New("invalid to date")
		}
		to = to.Add(24*time.Hour - time.Nanosecond)
		filter.ToDate = &to
	}
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return filter, errors.New("invalid limit")
		}
	}
	if v := c.Query("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			return filter, errors.New("invalid offset")
		}
	}
	return filter, nil
}
