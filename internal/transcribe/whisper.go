package transcribe

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go"
)

// WhisperTranscriber wraps a whisper.cpp model for speech-to-text. It drives
// the low-level bindings so the decoding strategy can be chosen per call;
// the high-level model API always decodes greedily.
type WhisperTranscriber struct {
	mu           sync.Mutex
	ctx          *whisper.Context
	multilingual bool
	threads      int
}

// NewWhisperTranscriber loads a whisper model from the given path. threads
// of zero uses every CPU. The caller must call Close() when done.
func NewWhisperTranscriber(modelPath string, threads uint) (*WhisperTranscriber, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, &ModelLoadError{Model: modelPath, Err: err}
	}
	ctx := whisper.Whisper_init(modelPath)
	if ctx == nil {
		return nil, &ModelLoadError{Model: modelPath, Err: errors.New("whisper_init failed")}
	}
	n := int(threads)
	if n == 0 {
		n = runtime.NumCPU()
	}
	return &WhisperTranscriber{
		ctx:          ctx,
		multilingual: ctx.Whisper_is_multilingual() != 0,
		threads:      n,
	}, nil
}

// Close releases the whisper model resources.
func (t *WhisperTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx != nil {
		t.ctx.Whisper_free()
		t.ctx = nil
	}
	return nil
}

// Transcribe recognizes mono 16kHz float32 samples with beam search.
func (t *WhisperTranscriber) Transcribe(samples []float32, opts Options) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx == nil {
		return Result{}, &EngineError{Msg: "model is closed"}
	}
	if len(samples) == 0 {
		return Result{}, nil
	}

	params, err := decodeParams(t.ctx, t.multilingual, t.threads, opts)
	if err != nil {
		return Result{}, err
	}
	if err := t.ctx.Whisper_full(params, samples, nil, nil, nil); err != nil {
		return Result{}, &EngineError{Msg: "process", Err: err}
	}

	var (
		segments []string
		sumP     float64
		tokens   int
	)
	eot := t.ctx.Whisper_token_eot()
	for i := 0; i < t.ctx.Whisper_full_n_segments(); i++ {
		if text := strings.TrimSpace(t.ctx.Whisper_full_get_segment_text(i)); text != "" {
			segments = append(segments, text)
		}
		for j := 0; j < t.ctx.Whisper_full_n_tokens(i); j++ {
			// Special tokens (timestamps, sot, eot and friends) sort after eot.
			if t.ctx.Whisper_full_get_token_id(i, j) >= eot {
				continue
			}
			sumP += float64(t.ctx.Whisper_full_get_token_p(i, j))
			tokens++
		}
	}

	res := Result{
		Text:     strings.Join(segments, " "),
		Language: whisper.Whisper_lang_str(t.ctx.Whisper_full_lang_id()),
	}
	if tokens > 0 {
		res.Confidence = sumP / float64(tokens)
	}
	return res, nil
}

// decodeParams builds quiet beam-search parameters for one call. The
// language hint applies to multilingual models only; an empty hint leaves
// the language unset so whisper detects it.
func decodeParams(ctx *whisper.Context, multilingual bool, threads int, opts Options) (whisper.Params, error) {
	params := ctx.Whisper_full_default_params(whisper.SAMPLING_BEAM_SEARCH)
	params.SetTranslate(false)
	params.SetPrintSpecial(false)
	params.SetPrintProgress(false)
	params.SetPrintRealtime(false)
	params.SetPrintTimestamps(false)
	params.SetNoContext(true)
	params.SetThreads(threads)

	beam := opts.BeamSize
	if beam <= 0 {
		beam = DefaultBeamSize
	}
	params.SetBeamSize(beam)

	if multilingual {
		lang := -1
		if hint := LanguageHint(opts.Language); hint != "" {
			if lang = ctx.Whisper_lang_id(hint); lang < 0 {
				return params, &EngineError{Msg: fmt.Sprintf("unknown language %q", hint), Err: whisper.ErrInvalidLanguage}
			}
		}
		if err := params.SetLanguage(lang); err != nil {
			return params, &EngineError{Msg: fmt.Sprintf("set language %q", opts.Language), Err: err}
		}
	}
	return params, nil
}
