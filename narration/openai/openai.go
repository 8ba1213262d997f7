// Package openai narrates scenes with an OpenAI chat model and speaks the result with the
// OpenAI speech endpoint.
package openai

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/multierr"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/narration"
	"go.viam.com/sceneaid/utils"
)

// Defaults used when a Config leaves the field empty.
const (
	DefaultChatModel    = openai.GPT4o
	DefaultSpeechModel  = string(openai.TTSModel1)
	DefaultVoice        = string(openai.VoiceAlloy)
	DefaultSystemPrompt = "You are a helpful AI."

	wavMIMEType = "audio/wav"
)

// Config describes how to reach the OpenAI API.
type Config struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url,omitempty"`
	ChatModel    string `json:"chat_model,omitempty"`
	SpeechModel  string `json:"speech_model,omitempty"`
	Voice        string `json:"voice,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	// DisableSpeech skips the speech call and returns text only.
	DisableSpeech bool `json:"disable_speech,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.APIKey == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "api_key")
	}
	return nil
}

func (cfg *Config) withDefaults() Config {
	out := *cfg
	if out.ChatModel == "" {
		out.ChatModel = DefaultChatModel
	}
	if out.SpeechModel == "" {
		out.SpeechModel = DefaultSpeechModel
	}
	if out.Voice == "" {
		out.Voice = DefaultVoice
	}
	if out.SystemPrompt == "" {
		out.SystemPrompt = DefaultSystemPrompt
	}
	return out
}

// Narrator implements narration.Narrator against the OpenAI API.
type Narrator struct {
	client *openai.Client
	cfg    Config
	logger logging.Logger
}

// NewNarrator returns a narrator for the given config.
func NewNarrator(cfg *Config, logger logging.Logger) (*Narrator, error) {
	if err := cfg.Validate("narrator"); err != nil {
		return nil, err
	}
	conf := cfg.withDefaults()
	clientConfig := openai.DefaultConfig(conf.APIKey)
	if conf.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(conf.BaseURL, "/")
	}
	return &Narrator{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    conf,
		logger: logger,
	}, nil
}

// Narrate asks the chat model for a description of req and, unless speech is disabled,
// converts it to wav audio.
func (n *Narrator) Narrate(ctx context.Context, req *narration.Request) (*narration.Narration, error) {
	if req.Empty() {
		return &narration.Narration{Text: narration.NothingDetected}, nil
	}

	start := time.Now()
	text, err := n.describe(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}
	n.logger.Debugw("chat completion finished", "policy", req.Policy, "objects", len(req.Objects), "took", time.Since(start))

	out := &narration.Narration{Text: text}
	if n.cfg.DisableSpeech {
		return out, nil
	}

	start = time.Now()
	audio, err := n.speak(ctx, text)
	if err != nil {
		return nil, err
	}
	out.Audio = audio
	out.AudioMIMEType = wavMIMEType
	if out.AudioDuration, err = wavDuration(audio); err != nil {
		n.logger.Debugw("could not read speech duration", "error", err)
	}
	n.logger.Debugw("speech finished", "bytes", len(audio), "duration", out.AudioDuration, "took", time.Since(start))
	return out, nil
}

func (n *Narrator) describe(ctx context.Context, prompt string) (string, error) {
	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: n.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: n.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion returned an empty description")
	}
	return text, nil
}

func (n *Narrator) speak(ctx context.Context, text string) (audio []byte, err error) {
	raw, err := n.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(n.cfg.SpeechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(n.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, errors.Wrap(err, "speech synthesis failed")
	}
	defer func() {
		err = multierr.Combine(err, raw.Close())
	}()
	audio, err = io.ReadAll(raw)
	if err != nil {
		return nil, errors.Wrap(err, "could not read synthesized speech")
	}
	if len(audio) == 0 {
		return nil, errors.New("speech synthesis returned no audio")
	}
	return audio, nil
}

func wavDuration(audio []byte) (time.Duration, error) {
	dec := wav.NewDecoder(bytes.NewReader(audio))
	if !dec.IsValidFile() {
		return 0, errors.New("speech is not a valid wav file")
	}
	return dec.Duration()
}
