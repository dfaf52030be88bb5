package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 20"><rect width="40" height="20" fill="#ff0000"/></svg>`

func TestFetchBuiltIn(t *testing.T) {
	l := New(Options{Images: map[string]Resource{"logo": {Bytes: pngBytes(t, 3, 2, color.White)}}})
	img, err := l.Fetch(context.Background(), "built-in:logo")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = l.Fetch(context.Background(), "builtin:missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchDataURI(t *testing.T) {
	l := New(Options{})
	encoded := base64.StdEncoding.EncodeToString(pngBytes(t, 5, 4, color.Black))
	img, err := l.Fetch(context.Background(), "data:image/png;base64,"+encoded)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())

	svg, err := l.Fetch(context.Background(), "data:image/svg+xml,"+squareSVG)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), svg.Bounds())
	r, _, _, a := svg.At(20, 10).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), a)

	_, err = l.Fetch(context.Background(), "data:image/png;base64")
	assert.Error(t, err)
}

func TestFetchHTTP(t *testing.T) {
	body := pngBytes(t, 8, 8, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		case "/icon.svg":
			w.Header().Set("Content-Type", "image/svg+xml")
			_, _ = w.Write([]byte(squareSVG))
		case "/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/garbage":
			_, _ = w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := New(Options{Client: srv.Client()})
	img, err := l.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	img, err = l.Fetch(context.Background(), srv.URL+"/icon.svg")
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	_, err = l.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Fetch(context.Background(), srv.URL+"/broken")
	assert.Error(t, err)
	_, err = l.Fetch(context.Background(), srv.URL+"/garbage")
	assert.Error(t, err)
}

func TestFetchHTTPRespectsSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{0}, 1024))
	}))
	defer srv.Close()

	l := New(Options{Client: srv.Client(), MaxBytes: 100})
	_, err := l.Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "上限")
}

func TestFetchFilePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), pngBytes(t, 2, 2, color.White), 0o644))

	l := New(Options{BaseDir: dir})
	_, err := l.Fetch(context.Background(), "a.png")
	require.NoError(t, err)
	_, err = l.Fetch(context.Background(), "file://"+filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	_, err = l.Fetch(context.Background(), "b.png")
	assert.ErrorIs(t, err, ErrNotFound)

	noBase := New(Options{})
	_, err = noBase.Fetch(context.Background(), "a.png")
	assert.ErrorContains(t, err, "未指定资源目录")
}

func TestFetcherFunc(t *testing.T) {
	var f Fetcher = FetcherFunc(func(ctx context.Context, src string) (image.Image, error) {
		return image.NewGray(image.Rect(0, 0, 1, 1)), nil
	})
	img, err := f.Fetch(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
}
