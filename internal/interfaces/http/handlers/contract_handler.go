package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/interfaces/http/middleware"
	"lexmatch.backend/internal/interfaces/http/response"
	"lexmatch.backend/internal/usecases"
	"lexmatch.backend/pkg/jwt"
	"lexmatch.backend/pkg/logger"
)

// ContractService is the contract API consumed by the handler
type ContractService interface {
	Create(ctx context.Context, actor usecases.Actor, input usecases.CreateContractInput) (*entities.ContractView, error)
	Get(ctx context.Context, actor usecases.Actor, id uuid.UUID) (*entities.ContractView, error)
	List(ctx context.Context, actor usecases.Actor, input usecases.ListContractsInput) (*usecases.ContractList, error)
	Sign(ctx context.Context, actor usecases.Actor, id uuid.UUID, asRole string) (*entities.ContractView, error)
	Cancel(ctx context.Context, actor usecases.Actor, id uuid.UUID) (*entities.ContractView, error)
	CloseOut(ctx context.Context, actor usecases.Actor, id uuid.UUID) (*entities.ContractView, error)
	AttachEnvelope(ctx context.Context, actor usecases.Actor, id uuid.UUID, envelopeID, docURL string) (*entities.ContractView, error)
	SyncExternalStatus(ctx context.Context, actor usecases.Actor, id uuid.UUID) (*usecases.SyncView, error)
	GetDocument(ctx context.Context, actor usecases.Actor, id uuid.UUID) (*usecases.DocumentRef, error)
	DownloadSignedDocument(ctx context.Context, actor usecases.Actor, id uuid.UUID) (*usecases.SignedDocumentResult, error)
	History(ctx context.Context, actor usecases.Actor, id uuid.UUID) ([]*entities.ContractTransition, error)
}

// ContractHandler handles contract endpoints
type ContractHandler struct {
	service ContractService
}

// NewContractHandler creates a new contract handler
func NewContractHandler(service ContractService) *ContractHandler {
	return &ContractHandler{service: service}
}

// SignRequest optionally names the role the caller signs as
type SignRequest struct {
	Role string `json:"role"`
}

// AttachEnvelopeRequest links a contract to a provider envelope
type AttachEnvelopeRequest struct {
	EnvelopeID string `json:"envelopeId" binding:"required"`
	DocURL     string `json:"docUrl"`
}

// CreateContract creates a contract with the caller as client
// POST /api/v1/contracts
func (h *ContractHandler) CreateContract(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req usecases.CreateContractInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, createBindError(err))
		return
	}

	view, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// ListContracts lists the caller's contracts
// GET /api/v1/contracts
func (h *ContractHandler) ListContracts(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.service.List(c.Request.Context(), actor, usecases.ListContractsInput{
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetContract returns one contract
// GET /api/v1/contracts/:id
func (h *ContractHandler) GetContract(c *gin.Context) {
	h.withContract(c, func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error) {
		return h.service.Get(ctx, actor, id)
	})
}

// SignContract records the caller's signature
// POST /api/v1/contracts/:id/sign
func (h *ContractHandler) SignContract(c *gin.Context) {
	var req SignRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}
	h.withContract(c, func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error) {
		return h.service.Sign(ctx, actor, id, req.Role)
	})
}

// CancelContract withdraws a contract awaiting signatures
// POST /api/v1/contracts/:id/cancel
func (h *ContractHandler) CancelContract(c *gin.Context) {
	h.withContract(c, func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error) {
		return h.service.Cancel(ctx, actor, id)
	})
}

// CloseContract marks an active contract as done
// POST /api/v1/internal/contracts/:id/close
func (h *ContractHandler) CloseContract(c *gin.Context) {
	h.withContract(c, func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error) {
		return h.service.CloseOut(ctx, actor, id)
	})
}

// AttachEnvelope links the contract to an e-signature envelope
// POST /api/v1/contracts/:id/envelope
func (h *ContractHandler) AttachEnvelope(c *gin.Context) {
	var req AttachEnvelopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	h.withContract(c, func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error) {
		return h.service.AttachEnvelope(ctx, actor, id, req.EnvelopeID, req.DocURL)
	})
}

// SyncContract pulls the envelope state from the provider
// POST /api/v1/contracts/:id/sync
func (h *ContractHandler) SyncContract(c *gin.Context) {
	h.withContract(c, func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error) {
		return h.service.SyncExternalStatus(ctx, actor, id)
	})
}

// GetDocument returns the contract document reference
// GET /api/v1/contracts/:id/document
func (h *ContractHandler) GetDocument(c *gin.Context) {
	h.withContract(c, func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error) {
		return h.service.GetDocument(ctx, actor, id)
	})
}

// GetHistory returns the audit trail
// GET /api/v1/contracts/:id/history
func (h *ContractHandler) GetHistory(c *gin.Context) {
	h.withContract(c, func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error) {
		items, err := h.service.History(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []*entities.ContractTransition{}
		}
		return gin.H{"items": items}, nil
	})
}

// DownloadSignedDocument streams the completed document from the provider
// GET /api/v1/contracts/:id/signed-document
func (h *ContractHandler) DownloadSignedDocument(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := contractIDParam(c)
	if !ok {
		return
	}

	res, err := h.service.DownloadSignedDocument(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	doc := res.Document
	if res.ArchiveKey != "" {
		c.Header("X-Archive-Key", res.ArchiveKey)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	c.Data(http.StatusOK, contentType, doc.Content)
}

type contractAction func(ctx context.Context, actor usecases.Actor, id uuid.UUID) (interface{}, error)

func (h *ContractHandler) withContract(c *gin.Context, action contractAction) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := contractIDParam(c)
	if !ok {
		return
	}

	ctx := logger.WithContractID(c.Request.Context(), id.String())
	result, err := action(ctx, actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func actorFrom(c *gin.Context) (usecases.Actor, bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		response.Error(c, domainerrors.Unauthenticated("unauthenticated"))
		return usecases.Actor{}, false
	}
	role, _ := middleware.GetUserRole(c)
	return usecases.Actor{UserID: userID, Admin: role == jwt.RoleAdmin}, true
}

func contractIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid contract ID"))
		return uuid.Nil, false
	}
	return id, true
}

// createBindError reports a malformed fee model as a validation failure like
// any other fee model error; everything else is a bad request.
func createBindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && (typeErr.Field == "feeModel" || strings.HasPrefix(typeErr.Field, "feeModel.")) {
		return domainerrors.Validation(fmt.Sprintf("invalid fee model: %s has the wrong type", typeErr.Field))
	}
	return domainerrors.BadRequest(err.Error())
}
