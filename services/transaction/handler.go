package transaction

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"nextt-backend/pkg/errutil"
	"nextt-backend/pkg/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	Type          Type            `json:"type" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	ProjectID     *string         `json:"project_id"`
	WalletAddress string          `json:"wallet_address"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
}

// Create dispatches on transaction type. Payouts are system-initiated and
// cannot be created through the API.
func (h *Handler) Create(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		_ = c.Error(errutil.Unauthorized("authentication required", nil))
		return
	}

	userID, err := snowflake.ParseString(principal.UserID)
	if err != nil {
		_ = c.Error(errutil.Unauthorized("malformed user identity", err))
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	switch req.Type {
	case TypeDeposit:
		var projectID *snowflake.ID
		if req.ProjectID != nil {
			id, err := snowflake.ParseString(*req.ProjectID)
			if err != nil {
				_ = c.Error(errutil.ValidationFailed("malformed project id", err))
				return
			}
			projectID = &id
		}

		result, err := h.svc.Deposit(c.Request.Context(), DepositRequest{
			UserID:      userID,
			ProjectID:   projectID,
			Amount:      req.Amount,
			Description: req.Description,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, result)

	case TypeWithdrawal:
		tx, err := h.svc.Withdraw(c.Request.Context(), WithdrawRequest{
			UserID:        userID,
			Amount:        req.Amount,
			WalletAddress: req.WalletAddress,
			Currency:      req.Currency,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, tx)

	default:
		_ = c.Error(errutil.ValidationFailed("type must be deposit or withdrawal", nil))
	}
}

// List returns the caller's transactions; admins may list any user's by
// passing user_id.
func (h *Handler) List(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		_ = c.Error(errutil.Unauthorized("authentication required", nil))
		return
	}

	filter := ListFilter{
		Type:   Type(c.Query("type")),
		Status: Status(c.Query("status")),
	}

	targetID := principal.UserID
	if principal.IsAdmin() && c.Query("user_id") != "" {
		targetID = c.Query("user_id")
	}
	userID, err := snowflake.ParseString(targetID)
	if err != nil {
		_ = c.Error(errutil.ValidationFailed("malformed user id", err))
		return
	}
	filter.UserID = userID

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			_ = c.Error(errutil.ValidationFailed("from must be RFC3339", err))
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			_ = c.Error(errutil.ValidationFailed("to must be RFC3339", err))
			return
		}
		filter.To = &t
	}

	results, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": results})
}

func (h *Handler) Get(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		_ = c.Error(errutil.Unauthorized("authentication required", nil))
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		_ = c.Error(errutil.ValidationFailed("malformed transaction id", err))
		return
	}

	tx, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if !principal.IsAdmin() && tx.UserID.String() != principal.UserID {
		_ = c.Error(errutil.NotFound("transaction not found", nil))
		return
	}

	c.JSON(http.StatusOK, tx)
}

type updateStatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

// UpdateStatus is admin-only; users never finalize their own entries.
func (h *Handler) UpdateStatus(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		_ = c.Error(errutil.Unauthorized("authentication required", nil))
		return
	}
	if !principal.IsAdmin() {
		_ = c.Error(errutil.Forbidden("admin role required", nil))
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		_ = c.Error(errutil.ValidationFailed("malformed transaction id", err))
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	tx, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
