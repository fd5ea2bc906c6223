package server

import (
	_ "embed"

	"github.com/guiyumin/urduscribe/internal/core/media"
)

//go:embed web/index.html
var indexHTML []byte

var mediaExtensions = media.SupportedExtensions
