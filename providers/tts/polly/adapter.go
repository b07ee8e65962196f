package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
)

const ProviderID = "tts-amazon-polly"

const maxAudioBytes = 16 << 20

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Config struct {
	Region  string
	VoiceID string
	Engine  string
	Timeout time.Duration
}

type Adapter struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

// NewAdapter defers AWS credential loading to the first call.
func NewAdapter(cfg Config) *Adapter {
	return NewAdapterWithClient(cfg, nil)
}

func NewAdapterWithClient(cfg Config, client synthClient) *Adapter {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Joanna"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Adapter{client: client, cfg: cfg}
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

// Synthesize renders req.Text as MP3. Polly has no equivalent of the
// stability/similarity voice settings, so req.Settings is ignored.
func (a *Adapter) Synthesize(ctx context.Context, req contracts.SpeechRequest) (contracts.SpeechAudio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return contracts.SpeechAudio{}, fmt.Errorf("polly synthesize: text is required")
	}
	client, err := a.resolveClient(ctx)
	if err != nil {
		return contracts.SpeechAudio{}, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(a.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	voiceID := a.cfg.VoiceID
	if strings.TrimSpace(req.VoiceID) != "" {
		voiceID = req.VoiceID
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(callCtx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         aws.String(req.Text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voiceID),
	})
	if err != nil {
		return contracts.SpeechAudio{}, contracts.NewOutcomeError(ProviderID, normalizePollyError(err), err)
	}
	if output == nil || output.AudioStream == nil {
		return contracts.SpeechAudio{}, contracts.Malformed(ProviderID, errors.New("empty audio stream"))
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(io.LimitReader(output.AudioStream, maxAudioBytes))
	if err != nil {
		return contracts.SpeechAudio{}, contracts.NewOutcomeError(ProviderID, contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_audio_stream_read_error"}, err)
	}
	if len(audio) == 0 {
		return contracts.SpeechAudio{}, contracts.Malformed(ProviderID, errors.New("empty audio stream"))
	}
	mime := "audio/mpeg"
	if output.ContentType != nil && *output.ContentType != "" {
		mime = *output.ContentType
	}
	return contracts.SpeechAudio{Audio: audio, MimeType: mime}, nil
}

func normalizePollyError(err error) contracts.Outcome {
	if errors.Is(err, context.Canceled) {
		return contracts.Outcome{Class: contracts.OutcomeCancelled, Retryable: false, Reason: "provider_cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contracts.Outcome{Class: contracts.OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			return contracts.Outcome{Class: contracts.OutcomeOverload, Retryable: true, Reason: "provider_overload", BackoffMS: 500}
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "MarksNotSupportedForFormatException", "InvalidSampleRateException":
			return contracts.Outcome{Class: contracts.OutcomeBlocked, Retryable: false, Reason: "provider_client_error"}
		case "AccessDeniedException", "UnrecognizedClientException":
			return contracts.Outcome{Class: contracts.OutcomeBlocked, Retryable: false, Reason: "provider_auth_or_policy_block"}
		default:
			return contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_server_error"}
		}
	}

	return contracts.Outcome{Class: contracts.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_transport_error"}
}

func (a *Adapter) resolveClient(ctx context.Context) (synthClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.Region))
	if err != nil {
		return nil, contracts.NewOutcomeError(ProviderID, contracts.Outcome{Class: contracts.OutcomeUnavailable, Reason: "provider_client_init_failed"}, fmt.Errorf("load aws config: %w", err))
	}
	a.client = polly.NewFromConfig(awsCfg)
	return a.client, nil
}
