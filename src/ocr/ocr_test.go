package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textlens/src/apperr"
)

type fakeEngine struct {
	checks   int
	checkErr error
	text     string
	err      error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Check(context.Context) error {
	f.checks++
	return f.checkErr
}

func (f *fakeEngine) Recognize(context.Context, []byte) (string, error) {
	return f.text, f.err
}

func TestRecognizerChecksOnce(t *testing.T) {
	e := &fakeEngine{text: "  Hello\n"}
	r := NewRecognizer(e)

	for i := 0; i < 3; i++ {
		text, err := r.Recognize(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "Hello", text)
	}
	assert.Equal(t, 1, e.checks)
}

func TestRecognizerUnavailable(t *testing.T) {
	e := &fakeEngine{checkErr: errors.New("missing")}
	r := NewRecognizer(e)

	_, err := r.Recognize(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrOCRUnavailable)
	_, err = r.Recognize(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrOCRUnavailable)
	assert.Equal(t, 1, e.checks)
}

func TestRecognizerEngineFailure(t *testing.T) {
	r := NewRecognizer(&fakeEngine{err: errors.New("crashed")})
	_, err := r.Recognize(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrOCRFailed)
	assert.Equal(t, "OCR failed: crashed", err.Error())
}

func TestRecognizerEmptyTextIsNotAnError(t *testing.T) {
	text, err := NewRecognizer(&fakeEngine{text: " \n"}).Recognize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}

type fakeVision struct{ got []byte }

func (f *fakeVision) QueryVision(_ context.Context, png []byte) (string, error) {
	f.got = png
	return "from vision", nil
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine("", "eng", nil)
	require.NoError(t, err)
	assert.Equal(t, EngineTesseract, e.Name())

	v := &fakeVision{}
	e, err = NewEngine("Vision", "", v)
	require.NoError(t, err)
	text, err := e.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "from vision", text)
	assert.Equal(t, []byte("img"), v.got)

	_, err = NewEngine("abbyy", "", nil)
	assert.Error(t, err)

	assert.Error(t, VisionEngine{}.Check(context.Background()))
}

func TestPreprocessUpscalesSmallCaptures(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 40))
	src.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := Preprocess(buf.Bytes())
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestPreprocessRejectsGarbage(t *testing.T) {
	_, err := Preprocess([]byte("not an image"))
	assert.Error(t, err)
}
