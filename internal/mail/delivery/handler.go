package delivery

import (
	"net/http"
	"strconv"

	"jobtrack-backend/internal/mail/domain"
	"jobtrack-backend/internal/mail/dto"
	"jobtrack-backend/internal/mail/usecase"

	"github.com/gin-gonic/gin"
)

// SyncHandler handles sync-related HTTP requests
type SyncHandler struct {
	syncUsecase usecase.SyncUsecase
}

func NewSyncHandler(syncUsecase usecase.SyncUsecase) *SyncHandler {
	return &SyncHandler{
		syncUsecase: syncUsecase,
	}
}

// RunSync syncs the caller's mailbox and returns the run result
// POST /api/sync/gmail, POST /api/sync
func (h *SyncHandler) RunSync(c *gin.Context) {
	userID := c.GetString("userID")

	result, err := h.syncUsecase.RunSync(c.Request.Context(), userID)
	resp := dto.NewSyncResponse(result, err)

	switch resp.Kind {
	case domain.ResultOK:
		c.JSON(http.StatusOK, resp)
	case domain.ResultAlreadySyncing:
		c.JSON(http.StatusConflict, resp)
	case domain.ResultNoCredential:
		c.JSON(http.StatusBadRequest, resp)
	default:
		c.JSON(http.StatusInternalServerError, resp)
	}
}

// GetRuns returns the caller's most recent sync runs
// GET /api/sync/runs?limit=20
func (h *SyncHandler) GetRuns(c *gin.Context) {
	userID := c.GetString("userID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	runs, err := h.syncUsecase.ListRuns(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*domain.SyncRun{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetMessages returns the ingestion audit trail
// GET /api/messages?limit=50
func (h *SyncHandler) GetMessages(c *gin.Context) {
	userID := c.GetString("userID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.syncUsecase.ListMessages(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []*domain.IngestedMessage{}
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}
