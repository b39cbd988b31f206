// MIT License
//
// Copyright (c) 2025 agrismart-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// go/src/http/server.go
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrismart-core/go/src/core"
	logger "github.com/agrismart-core/go/src/log"
	"github.com/agrismart-core/go/src/query"
)

// Server exposes the ledger over HTTP: JSON endpoints for recording and
// querying, a Prometheus scrape target and a websocket feed of mined blocks.
type Server struct {
	engine  *core.LedgerEngine
	queries *query.Service
	hub     *BlockHub
	metrics *Metrics
	router  *gin.Engine
}

// NewServer wires the API routes over an engine, its query service and the
// block hub. The Prometheus registry receives both the API instruments and
// the scrape handler's registry.
func NewServer(engine *core.LedgerEngine, queries *query.Service, hub *BlockHub, reg *prometheus.Registry) *Server {
	s := &Server{
		engine:  engine,
		queries: queries,
		hub:     hub,
		metrics: NewMetrics(reg, engine.PendingCount),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.metrics.Instrument())

	api := router.Group("/api/blockchain")
	{
		api.POST("/smart-contract/create", s.createContract)
		api.GET("/contract/:contract_id", s.contractStatus)
		api.POST("/record-stage", s.recordStage)
		api.POST("/force-mine-block", s.mine)
		api.GET("/product-trace/:product_id", s.traceProduct)
		api.GET("/verify-authenticity/:product_id", s.verifyProduct)
		api.GET("/stats", s.stats)
		api.GET("/farmer-stats/:farmer_id", s.farmerStatistics)
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.GET("/ws/blocks", func(c *gin.Context) { hub.Subscribe(c.Writer, c.Request) })
	router.GET("/health", s.health)

	s.router = router
	return s
}

// Run serves the API until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

type createContractRequest struct {
	ProductID            string  `json:"product_id" binding:"required"`
	FarmerID             string  `json:"farmer_id" binding:"required"`
	FarmerName           string  `json:"farmer_name"`
	ProductType          string  `json:"product_type"`
	Quantity             float64 `json:"quantity" binding:"required"`
	Unit                 string  `json:"unit"`
	ExpectedDeliveryDays int     `json:"expected_delivery_days" binding:"required"`
	BuyerID              string  `json:"buyer_id"`
	Price                float64 `json:"price"`
}

func (s *Server) createContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.CreateContract(c.Request.Context(),
		req.ProductID, req.FarmerID, req.FarmerName, req.ProductType,
		req.Quantity, req.Unit, req.ExpectedDeliveryDays, req.BuyerID, req.Price)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type recordStageRequest struct {
	ProductID    string   `json:"product_id" binding:"required"`
	Stage        string   `json:"stage" binding:"required"`
	Actor        string   `json:"actor" binding:"required"`
	ActorID      string   `json:"actor_id"`
	Location     string   `json:"location"`
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
	QualityScore *float64 `json:"quality_score"`
	Notes        string   `json:"notes"`
	ContractID   string   `json:"contract_id"`
}

func (s *Server) recordStage(c *gin.Context) {
	var req recordStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	before := s.engine.ChainLength()
	result, err := s.engine.RecordStage(c.Request.Context(),
		req.ProductID, req.Stage, req.Actor, req.ActorID, req.Location,
		req.Temperature, req.Humidity, req.QualityScore, req.Notes, req.ContractID)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if s.engine.ChainLength() > before {
		s.metrics.mined.Inc()
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) mine(c *gin.Context) {
	result, err := s.engine.Mine(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "No pending transactions to mine",
		})
		return
	}
	s.metrics.mined.Inc()
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Block mined",
		"block":   result,
	})
}

func (s *Server) traceProduct(c *gin.Context) {
	trace, err := s.queries.GetProductTrace(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}

func (s *Server) verifyProduct(c *gin.Context) {
	result, err := s.queries.VerifyProductAuthenticity(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) contractStatus(c *gin.Context) {
	result, err := s.queries.GetContractStatus(c.Request.Context(), c.Param("contract_id"))
	if errors.Is(err, query.ErrContractNotFound) {
		fail(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) stats(c *gin.Context) {
	result, err := s.queries.GetBlockchainStats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) farmerStatistics(c *gin.Context) {
	result, err := s.queries.GetFarmerStatistics(c.Request.Context(), c.Param("farmer_id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) health(c *gin.Context) {
	info := s.engine.ChainInfo()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"total_blocks": info.TotalBlocks,
		"current_hash": info.CurrentHash,
	})
}

func fail(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		logger.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(code, gin.H{"status": "error", "message": err.Error()})
}
