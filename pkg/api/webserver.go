package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/traffic-vision/pkg/utils"
)

//RouterOptions configures the HTTP surface
type RouterOptions struct {
	SourceDir string
	//StaticDir holds the built viewer, skipped when empty or missing
	StaticDir      string
	MaxUploadBytes int64
	Hub            *Hub
	Preview        *PreviewSink
	Logger         *zap.SugaredLogger
}

func SetRouter(opts RouterOptions) *gin.Engine {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = utils.DefaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	logger := opts.Logger

	r := gin.New()
	r.Use(gin.Recovery())

	//serve the viewer to the client
	if opts.StaticDir != "" {
		if _, err := os.Stat(opts.StaticDir); err == nil {
			r.Static("/client", opts.StaticDir)
			r.StaticFile("/", filepath.Join(opts.StaticDir, "index.html"))
		} else {
			logger.Warnw("static files not served", "path", opts.StaticDir, "error", err)
		}
	}

	if opts.Hub != nil {
		r.GET("/ws", gin.WrapH(opts.Hub))
	}

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Traffic Vision API is running"})
	})

	apiRoutes.GET("/uploads", func(ctx *gin.Context) {
		if names, err := utils.ListDir(opts.SourceDir); err != nil {
			logger.Errorw("api/uploads: listing failed", "error", err)
			ctx.Status(http.StatusInternalServerError)
		} else {
			ctx.JSON(http.StatusOK, names)
		}
	})

	apiRoutes.GET("/sessions/:id/preview", func(ctx *gin.Context) {
		if opts.Preview == nil {
			ctx.Status(http.StatusNotFound)
			return
		}
		s := opts.Preview.Stream(ctx.Param("id"))
		if s == nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "no preview for this session"})
			return
		}
		s.ServeHTTP(ctx.Writer, ctx.Request)
	})

	apiRoutes.POST("/upload", func(ctx *gin.Context) {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, opts.MaxUploadBytes+(1<<20))

		fHeader, err := ctx.FormFile("video")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
			return
		}
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "No video file provided"})
			return
		}

		name := utils.SafeName(fHeader.Filename)
		if name == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
			return
		}
		if !utils.AllowedFile(name) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Allowed: mp4, avi, mov, mkv"})
			return
		}
		if fHeader.Size > opts.MaxUploadBytes {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
			return
		}

		stored := utils.UniqueUploadName(name)
		dst := filepath.Join(opts.SourceDir, stored)
		if err := ctx.SaveUploadedFile(fHeader, dst); err != nil {
			logger.Errorw("api/upload: could not store file", "path", dst, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Could not store the uploaded file"})
			return
		}
		logger.Infow("api/upload: received new file", "name", name, "stored", stored, "bytes", fHeader.Size)

		ctx.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Video uploaded successfully. Starting real-time processing...",
			"data": gin.H{
				"filename":          stored,
				"original_filename": name,
			},
		})
	})

	return r
}
