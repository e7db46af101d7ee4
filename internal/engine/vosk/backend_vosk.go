//go:build vosk

package vosk

import (
	"fmt"
	"os"

	vosk "github.com/alphacep/vosk-api/go"
)

// Compiled Vosk 后端是否可用
const Compiled = true

type voskModel struct {
	model *vosk.VoskModel
}

type voskRecognizer struct {
	rec *vosk.VoskRecognizer
}

func loadModel(path string) (model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vosk model not found: %s", path)
	}
	m, err := vosk.NewModel(path)
	if err != nil {
		return nil, fmt.Errorf("load vosk model: %w", err)
	}
	return &voskModel{model: m}, nil
}

func (m *voskModel) NewRecognizer(sampleRate float64) (recognizer, error) {
	rec, err := vosk.NewRecognizer(m.model, sampleRate)
	if err != nil {
		return nil, err
	}
	return &voskRecognizer{rec: rec}, nil
}

func (m *voskModel) Free() {
	m.model.Free()
}

func (r *voskRecognizer) AcceptWaveform(pcm []byte) bool {
	return r.rec.AcceptWaveform(pcm) != 0
}

func (r *voskRecognizer) Result() string        { return r.rec.Result() }
func (r *voskRecognizer) PartialResult() string { return r.rec.PartialResult() }
func (r *voskRecognizer) FinalResult() string   { return r.rec.FinalResult() }
func (r *voskRecognizer) Reset()                { r.rec.Reset() }
func (r *voskRecognizer) Free()                 { r.rec.Free() }
