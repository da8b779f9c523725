package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"prequal-service/internal/service"
	"prequal-service/internal/validate"
)

func RegisterHandlers(r *gin.Engine, svc *service.ApplicationService) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	v1 := r.Group("/v1")
	{
		v1.POST("/applications", submitHandler(svc))
		v1.GET("/applications/:id", statusHandler(svc))
	}
}

type submitReq struct {
	PAN             string `json:"pan_number" binding:"required"`
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	DateOfBirth     string `json:"date_of_birth" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Phone           string `json:"phone_number" binding:"required"`
	MonthlyIncome   string `json:"monthly_income" binding:"required"`
	RequestedAmount string `json:"requested_amount" binding:"required"`
	LoanType        string `json:"loan_type" binding:"required"`
}

func submitHandler(svc *service.ApplicationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_of_birth, expected YYYY-MM-DD"})
			return
		}
		income, err := decimal.NewFromString(req.MonthlyIncome)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid monthly_income"})
			return
		}
		amount, err := decimal.NewFromString(req.RequestedAmount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid requested_amount"})
			return
		}

		res, err := svc.Submit(c, validate.Submission{
			PAN:             req.PAN,
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			DateOfBirth:     dob,
			Email:           req.Email,
			Phone:           req.Phone,
			MonthlyIncome:   income,
			RequestedAmount: amount,
			LoanType:        req.LoanType,
		})
		if err != nil {
			var fieldErrs validate.FieldErrors
			switch {
			case errors.As(err, &fieldErrs):
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fieldErrs})
			case errors.Is(err, service.ErrDuplicatePAN):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		// 202: accepted for processing, decided asynchronously.
		c.JSON(http.StatusAccepted, gin.H{
			"application_id": res.ApplicationID,
			"status":         res.Status,
			"created_at":     res.CreatedAt,
		})
	}
}

func statusHandler(svc *service.ApplicationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid application id"})
			return
		}
		res, err := svc.GetStatus(c, id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
