package worker

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"vocalis/core"
)

// Server exposes the worker over HTTP.
type Server struct {
	worker *Worker
	logger *core.Logger
}

func NewServer(worker *Worker, logger *core.Logger) *Server {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Server{worker: worker, logger: logger}
}

// Router returns the worker's routes. /run and /runsync are the same in this
// single-job worker; both block until the job completes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/runsync", s.handleRun)
	router.POST("/run", s.handleRun)
	router.POST("/stream", s.handleStream)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", s.handleMetrics)

	return router
}

func (s *Server) handleRun(c *gin.Context) {
	var job Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed job: " + err.Error()})
		return
	}

	result := s.worker.Handle(c.Request.Context(), job)
	c.JSON(http.StatusOK, result)
}

// streamFrame is one line of the chunked /stream response.
type streamFrame struct {
	Chunk  string  `json:"chunk,omitempty"`
	Result *Result `json:"result,omitempty"`
}

func (s *Server) handleStream(c *gin.Context) {
	var job Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed job: " + err.Error()})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)

	chunks := make(chan string, 16)
	done := make(chan Result, 1)
	go func() {
		done <- s.worker.HandleStream(c.Request.Context(), job, chunks)
		close(chunks)
	}()

	writeFrame := func(frame streamFrame) bool {
		data, err := sonic.Marshal(frame)
		if err != nil {
			s.logger.Warn("failed to marshal stream frame", "error", err)
			return false
		}
		if _, err := c.Writer.Write(append(data, '\n')); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	for chunk := range chunks {
		if !writeFrame(streamFrame{Chunk: chunk}) {
			return
		}
	}
	result := <-done
	writeFrame(streamFrame{Result: &result})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.worker.Metrics().Snapshot())
}
