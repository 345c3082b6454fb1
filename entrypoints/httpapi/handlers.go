package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"allocation/domain/commands"
	"allocation/errors"
)

type orderLineRequest struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type batchRequest struct {
	Ref string `json:"ref"`
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
	// ETA 接受 2006-01-02 或 RFC3339，缺省表示已在库
	ETA *string `json:"eta"`
}

type quantityRequest struct {
	Qty *int `json:"qty"`
}

// batchRefResponse 缺货时 batchref 为 null
type batchRefResponse struct {
	BatchRef any `json:"batchref"`
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) allocate(c *gin.Context) {
	var req orderLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	results, err := s.bus.Handle(c.Request.Context(), commands.Allocate{OrderID: req.OrderID, SKU: req.SKU, Qty: req.Qty})
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, batchRefResponse{BatchRef: first(results)})
}

func (s *Server) deallocate(c *gin.Context) {
	var req orderLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	results, err := s.bus.Handle(c.Request.Context(), commands.Deallocate{OrderID: req.OrderID, SKU: req.SKU, Qty: req.Qty})
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, batchRefResponse{BatchRef: first(results)})
}

func (s *Server) allocations(c *gin.Context) {
	orderID := c.Param("orderid")
	rows, err := s.views.Allocations(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}
	if len(rows) == 0 {
		writeError(c, s.logger, errors.NewError(errors.ErrCodeNotFound, fmt.Sprintf("订单 %s 没有分配记录", orderID)))
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) addBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := commands.CreateBatch{Ref: req.Ref, SKU: req.SKU, Qty: req.Qty}
	if req.ETA != nil && *req.ETA != "" {
		eta, err := parseETA(*req.ETA)
		if err != nil {
			badRequest(c, err)
			return
		}
		cmd.ETA = &eta
	}
	if _, err := s.bus.Handle(c.Request.Context(), cmd); err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ref": cmd.Ref})
}

func (s *Server) changeBatchQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Qty == nil {
		badRequest(c, fmt.Errorf("qty is required"))
		return
	}
	ref := c.Param("ref")
	if _, err := s.bus.Handle(c.Request.Context(), commands.ChangeBatchQuantity{Ref: ref, Qty: *req.Qty}); err != nil {
		writeError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batchref": ref, "qty": *req.Qty})
}

func first(results []any) any {
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

func parseETA(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid eta %q", s)
	}
	return t, nil
}
