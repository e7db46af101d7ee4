//go:build !vosk

package vosk

// Compiled Vosk 后端是否可用，默认构建不链接 libvosk
const Compiled = false

func loadModel(string) (model, error) {
	return nil, ErrNotCompiled
}
