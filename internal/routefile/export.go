package routefile

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"burrow/internal/request"
	"burrow/internal/response"
	"burrow/internal/router"
	"burrow/internal/status"
)

// Export serves regular files below dir, named by the remaining request
// path. Directories, missing files and names that escape dir are left to
// later routes.
func Export(dir string) router.Handler {
	return router.HandlerFunc(func(req *request.Context, w *response.Writer) (status.Status, error) {
		name := strings.TrimLeft(req.Path(), "/")
		if name == "" {
			return status.NotProcessed, nil
		}

		root, err := os.OpenRoot(dir)
		if err != nil {
			return status.InternalError, err
		}
		defer root.Close()

		f, err := root.Open(name)
		if err != nil {
			return status.NotProcessed, nil
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return status.NotProcessed, nil
		}

		contentType := mime.TypeByExtension(path.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := w.SetHeader("Content-Type", contentType); err != nil {
			return status.InternalError, err
		}
		if err := w.SetHeader("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat)); err != nil {
			return status.InternalError, err
		}
		w.SetLength(info.Size())

		if req.Method() == http.MethodHead {
			return status.Processed, nil
		}
		if _, err := io.Copy(w, f); err != nil {
			return status.InternalError, err
		}
		return status.Processed, nil
	})
}
