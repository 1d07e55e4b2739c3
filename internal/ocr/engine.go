// Package ocr runs a CTC text-recognition ONNX model over whole images.
package ocr

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

// Fallback input geometry when the model reports dynamic dimensions.
const (
	defaultHeight = 48
	defaultWidth  = 320
)

// Engine runs ONNX text recognition and decodes the output with greedy CTC.
// Charset index 0 is the CTC blank; line i of the charset file maps to
// class i+1.
type Engine struct {
	mu sync.Mutex

	modelPath   string
	charsetPath string
	libPath     string

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	charset []string
	height  int
	width   int
	classes int
	inited  bool
}

// NewEngine creates an engine that lazily loads the ONNX model and charset.
func NewEngine(modelPath, charsetPath, onnxLibPath string) *Engine {
	return &Engine{
		modelPath:   modelPath,
		charsetPath: charsetPath,
		libPath:     onnxLibPath,
	}
}

func (e *Engine) initOnce() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inited {
		return nil
	}

	if e.libPath != "" {
		ort.SetSharedLibraryPath(e.libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	charset, err := loadCharset(e.charsetPath)
	if err != nil {
		return fmt.Errorf("load charset: %w", err)
	}
	e.charset = charset

	inputs, outputs, err := ort.GetInputOutputInfo(e.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputShape := inputs[0].Dimensions
	outputShape := outputs[0].Dimensions

	// NCHW input; dynamic axes are reported as -1.
	e.height, e.width = defaultHeight, defaultWidth
	if len(inputShape) == 4 {
		if inputShape[2] > 0 {
			e.height = int(inputShape[2])
		}
		if inputShape[3] > 0 {
			e.width = int(inputShape[3])
		} else {
			inputShape[3] = int64(e.width)
		}
		if inputShape[0] <= 0 {
			inputShape[0] = 1
		}
	} else {
		inputShape = []int64{1, 3, int64(e.height), int64(e.width)}
	}

	// [batch, timesteps, classes] output; derive timesteps from the fixed
	// width when the model leaves the axis dynamic.
	e.classes = len(e.charset) + 1
	if len(outputShape) == 3 {
		if outputShape[2] > 0 {
			e.classes = int(outputShape[2])
		} else {
			outputShape[2] = int64(e.classes)
		}
		if outputShape[1] <= 0 {
			outputShape[1] = int64(e.width / 8)
		}
		if outputShape[0] <= 0 {
			outputShape[0] = 1
		}
	} else {
		outputShape = []int64{1, int64(e.width / 8), int64(e.classes)}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	e.input = inputTensor

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}
	e.output = outputTensor

	inputNames := make([]string, len(inputs))
	for i := range inputs {
		inputNames[i] = inputs[i].Name
	}
	outputNames := make([]string, len(outputs))
	for i := range outputs {
		outputNames[i] = outputs[i].Name
	}

	session, err := ort.NewAdvancedSession(e.modelPath, inputNames, outputNames,
		[]ort.Value{e.input}, []ort.Value{e.output}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}
	e.session = session
	e.inited = true
	return nil
}

func loadCharset(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var charset []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		charset = append(charset, strings.TrimRight(sc.Text(), "\r\n"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(charset) == 0 {
		return nil, fmt.Errorf("charset file %s is empty", path)
	}
	return charset, nil
}

// Recognize decodes the image, runs recognition, and returns the CTC-decoded
// text. The result may be empty when the image contains no recognizable text.
func (e *Engine) Recognize(imageData []byte) (string, error) {
	if err := e.initOnce(); err != nil {
		return "", err
	}

	img, err := decodeImage(imageData)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	inputData := e.preprocess(img)

	e.mu.Lock()
	inData := e.input.GetData()
	if len(inData) < len(inputData) {
		e.mu.Unlock()
		return "", fmt.Errorf("input tensor size %d < preprocessed %d", len(inData), len(inputData))
	}
	copy(inData, inputData)
	err = e.session.Run()
	var outData []float32
	if err == nil {
		outData = append(outData, e.output.GetData()...)
	}
	e.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("onnx run: %w", err)
	}

	return e.ctcDecode(outData), nil
}

// Close releases the ONNX session and tensors.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return
	}
	e.session.Destroy()
	e.output.Destroy()
	e.input.Destroy()
	e.inited = false
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// image.Decode may not recognize some encodings; try explicitly.
		img, err = jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			img, err = png.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
		}
	}
	return img, nil
}

// preprocess resizes to the model geometry, RGB, NCHW, normalized to [-1,1].
func (e *Engine) preprocess(img image.Image) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	size := e.width * e.height
	out := make([]float32, 3*size)
	for y := 0; y < e.height; y++ {
		for x := 0; x < e.width; x++ {
			idx := y*e.width + x
			c := dst.RGBAAt(x, y)
			out[0*size+idx] = (float32(c.R)/255.0 - 0.5) / 0.5
			out[1*size+idx] = (float32(c.G)/255.0 - 0.5) / 0.5
			out[2*size+idx] = (float32(c.B)/255.0 - 0.5) / 0.5
		}
	}
	return out
}

// ctcDecode runs greedy decoding over [timesteps, classes] logits: take the
// argmax per timestep, drop blanks (class 0) and immediate repeats.
func (e *Engine) ctcDecode(logits []float32) string {
	if e.classes <= 0 || len(logits) < e.classes {
		return ""
	}
	timesteps := len(logits) / e.classes

	var sb strings.Builder
	prev := 0
	for t := 0; t < timesteps; t++ {
		row := logits[t*e.classes : (t+1)*e.classes]
		best := 0
		for i := 1; i < len(row); i++ {
			if row[i] > row[best] {
				best = i
			}
		}
		if best != 0 && best != prev && best-1 < len(e.charset) {
			sb.WriteString(e.charset[best-1])
		}
		prev = best
	}
	return strings.TrimSpace(sb.String())
}
