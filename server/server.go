// Package server exposes the HTTP trigger for on-demand scouting.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"outlier_scout/models"
	"outlier_scout/scraper"
	"outlier_scout/transcript"
)

const indexHTML = `<h1>Outlier Scout Service is Running</h1><p>Use the /scout endpoint to trigger scouting.</p>`

// Scouter runs a scouting batch.
type Scouter interface {
	Run(ctx context.Context, trigger models.RunTrigger, urls []string) (*scraper.RunSummary, error)
}

// Transcripts fetches caption envelopes.
type Transcripts interface {
	Envelope(ctx context.Context, videoID string) transcript.Envelope
}

// RunLister reads batches and their log lines from local history.
type RunLister interface {
	RecentRuns(limit int) ([]models.ScoutRun, error)
	RunLogs(runID int64) ([]models.ScoutLog, error)
}

type Handler struct {
	scouter     Scouter
	transcripts Transcripts
	runs        RunLister
}

func NewHandler(scouter Scouter, transcripts Transcripts, runs RunLister) *Handler {
	return &Handler{scouter: scouter, transcripts: transcripts, runs: runs}
}

type scoutRequest struct {
	ChannelURL string `json:"channelUrl"`
}

// Scout runs a blocking scrape of one channel.
func (h *Handler) Scout(c *gin.Context) {
	var req scoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ChannelURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Channel URL is required"})
		return
	}

	log.Printf("Received scout request for: %s", req.ChannelURL)

	summary, err := h.scouter.Run(c.Request.Context(), models.TriggerHTTP, []string{req.ChannelURL})
	if err != nil {
		log.Printf("Error during scouting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if summary.Failed > 0 {
		resp := gin.H{
			"success":  false,
			"message":  "Scouting failed",
			"outliers": summary.Saved,
			"run":      summary,
		}
		for _, r := range summary.Results {
			if r.Error != "" {
				resp["error"] = r.Error
				break
			}
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Scouting completed successfully",
		"outliers": summary.Saved,
		"run":      summary,
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

func (h *Handler) Transcript(c *gin.Context) {
	if h.transcripts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transcripts not configured"})
		return
	}
	videoID := strings.TrimSpace(c.Query("videoId"))
	if videoID == "" {
		c.JSON(http.StatusBadRequest, transcript.Envelope{Error: "No video ID provided"})
		return
	}

	env := h.transcripts.Envelope(c.Request.Context(), videoID)
	status := http.StatusOK
	if env.Error != "" {
		status = http.StatusBadGateway
	}
	c.JSON(status, env)
}

func (h *Handler) Runs(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []models.ScoutRun{}})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, 200)
	}

	runs, err := h.runs.RecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []models.ScoutRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *Handler) RunLogs(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}
	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"logs": []models.ScoutLog{}})
		return
	}

	logs, err := h.runs.RunLogs(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []models.ScoutLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// CORSMiddleware allows the listed origins ("*" for any) and answers
// preflight requests.
func CORSMiddleware(origins string) gin.HandlerFunc {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allow := allowedOrigin(origin, allowed); allow != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allow)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func allowedOrigin(origin string, allowed []string) string {
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if origin != "" && a == origin {
			return origin
		}
	}
	return ""
}

// NewRouter wires the routes onto a gin engine.
func NewRouter(h *Handler, corsOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), CORSMiddleware(corsOrigins))

	router.GET("/", h.Index)
	router.GET("/health", h.Health)
	router.POST("/scout", h.Scout)
	router.GET("/transcript", h.Transcript)
	router.GET("/runs", h.Runs)
	router.GET("/runs/:id/logs", h.RunLogs)
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// Serve runs the router on port until ctx is cancelled.
func Serve(ctx context.Context, port string, router http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Scout server running on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
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
