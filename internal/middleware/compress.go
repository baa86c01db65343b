package middleware

import (
	"compress/gzip"
	"strings"

	"github.com/gin-gonic/gin"
)

type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	return g.writer.Write(data)
}

type CompressConfig struct {
	Level     int
	Types     []string
	SkipPaths []string
}

// DefaultCompressConfig compresses the JSON surface. Health and metrics
// responses are tiny and scraped constantly, so they are skipped.
func DefaultCompressConfig() CompressConfig {
	return CompressConfig{
		Level: gzip.DefaultCompression,
		Types: []string{
			"application/json",
			"text/plain",
		},
		SkipPaths: []string{
			"/api/v1/health",
			"/metrics",
		},
	}
}

// Compress gzips responses for clients that accept it.
func Compress(config CompressConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		if !strings.Contains(c.Request.Header.Get("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		contentType := c.Writer.Header().Get("Content-Type")
		shouldCompress := false
		for _, t := range config.Types {
			if strings.Contains(contentType, t) {
				shouldCompress = true
				break
			}
		}

		if !shouldCompress {
			c.Next()
			return
		}

		gz, err := gzip.NewWriterLevel(c.Writer, config.Level)
		if err != nil {
			c.Next()
			return
		}
		defer gz.Close()

		c.Writer = &gzipWriter{c.Writer, gz}
		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")

		c.Next()
	}
}
