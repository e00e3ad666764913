package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/yungbote/maigie-backend/internal/platform/envutil"
	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

// Voice turns are short; synchronous Recognize accepts up to about a minute.
const maxInlineAudioBytes = 10 << 20

type SpeechConfig struct {
	LanguageCode    string
	Model           string
	SampleRateHertz int
	Timeout         time.Duration
}

func SpeechConfigFromEnv() SpeechConfig {
	return SpeechConfig{
		LanguageCode:    envutil.String("SPEECH_LANGUAGE_CODE", "en-US"),
		Model:           envutil.String("SPEECH_MODEL", "latest_short"),
		SampleRateHertz: envutil.Int("SPEECH_SAMPLE_RATE_HZ", 0),
		Timeout:         envutil.Duration("SPEECH_TIMEOUT_SECONDS", 30*time.Second),
	}
}

// Transcriber converts one recorded utterance into text.
type Transcriber struct {
	log    *logger.Logger
	cfg    SpeechConfig
	client *speech.Client
}

func NewTranscriber(ctx context.Context, log *logger.Logger, cfg SpeechConfig) (*Transcriber, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &Transcriber{log: log.With("service", "gcp.Speech"), cfg: cfg, client: c}, nil
}

func (t *Transcriber) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if len(audio) > maxInlineAudioBytes {
		return "", fmt.Errorf("audio too large for inline recognition: %d bytes", len(audio))
	}
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}
	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: buildRecognitionConfig(mimeType, t.cfg),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	})
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}
	return joinTranscript(resp.GetResults()), nil
}

func buildRecognitionConfig(mimeType string, cfg SpeechConfig) *speechpb.RecognitionConfig {
	lang := cfg.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	rc := &speechpb.RecognitionConfig{
		LanguageCode:               lang,
		Model:                      cfg.Model,
		EnableAutomaticPunctuation: true,
		Encoding:                   inferSpeechEncoding(mimeType),
	}
	if cfg.SampleRateHertz > 0 {
		rc.SampleRateHertz = int32(cfg.SampleRateHertz)
	}
	return rc
}

func inferSpeechEncoding(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(m, "wav"):
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3"), strings.Contains(m, "mpeg"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case strings.Contains(m, "ogg"), strings.Contains(m, "opus"):
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func joinTranscript(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if s := strings.TrimSpace(alts[0].GetTranscript()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
