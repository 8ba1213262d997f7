package openai

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	openai "github.com/sashabaranov/go-openai"
	"go.viam.com/test"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/narration"
	"go.viam.com/sceneaid/vision/proximity"
)

// oneSecondWav returns one second of 8kHz 16-bit mono silence.
func oneSecondWav(t *testing.T) []byte {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "speech.wav")
	f, err := os.Create(fn)
	test.That(t, err, test.ShouldBeNil)
	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 8000},
		Data:           make([]int, 8000),
		SourceBitDepth: 16,
	}
	test.That(t, enc.Write(buf), test.ShouldBeNil)
	test.That(t, enc.Close(), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)
	data, err := os.ReadFile(fn)
	test.That(t, err, test.ShouldBeNil)
	return data
}

type fakeAPI struct {
	chatCalls   atomic.Int32
	speechCalls atomic.Int32
	reply       string
	speech      []byte
	failChat    bool

	mu         sync.Mutex
	lastChat   openai.ChatCompletionRequest
	lastSpeech openai.CreateSpeechRequest
}

func (f *fakeAPI) requests() (openai.ChatCompletionRequest, openai.CreateSpeechRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastChat, f.lastSpeech
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v1/chat/completions":
		f.chatCalls.Add(1)
		if f.failChat {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.lastChat = req
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": f.reply}}},
		})
	case "/v1/audio/speech":
		f.speechCalls.Add(1)
		var req openai.CreateSpeechRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.lastSpeech = req
		f.mu.Unlock()
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(f.speech)
	default:
		http.NotFound(w, r)
	}
}

func newTestNarrator(t *testing.T, api *fakeAPI, disableSpeech bool) *Narrator {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	n, err := NewNarrator(&Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", DisableSpeech: disableSpeech}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return n
}

func sceneRequest() *narration.Request {
	return narration.Build([]proximity.ScoredObject{
		{Label: "chair", BoundingBox: image.Rect(0, 0, 10, 10), Proximity: 4},
	}, narration.PolicyScene)
}

func TestNarrate(t *testing.T) {
	api := &fakeAPI{reply: "  A chair is just ahead of you.\n", speech: oneSecondWav(t)}
	n := newTestNarrator(t, api, false)

	req := sceneRequest()
	out, err := n.Narrate(context.Background(), req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Text, test.ShouldEqual, "A chair is just ahead of you.")
	test.That(t, out.Audio, test.ShouldResemble, api.speech)
	test.That(t, out.AudioMIMEType, test.ShouldEqual, "audio/wav")
	test.That(t, out.AudioDuration.Seconds(), test.ShouldAlmostEqual, 1, 0.01)

	chat, speech := api.requests()
	test.That(t, chat.Model, test.ShouldEqual, "gpt-4o")
	test.That(t, chat.Messages, test.ShouldHaveLength, 2)
	test.That(t, chat.Messages[0].Role, test.ShouldEqual, openai.ChatMessageRoleSystem)
	test.That(t, chat.Messages[0].Content, test.ShouldEqual, DefaultSystemPrompt)
	test.That(t, chat.Messages[1].Content, test.ShouldEqual, req.Prompt)

	test.That(t, speech.Model, test.ShouldEqual, openai.TTSModel1)
	test.That(t, speech.Voice, test.ShouldEqual, openai.VoiceAlloy)
	test.That(t, speech.ResponseFormat, test.ShouldEqual, openai.SpeechResponseFormatWav)
	test.That(t, speech.Input, test.ShouldEqual, out.Text)
}

func TestNarrateTextOnly(t *testing.T) {
	api := &fakeAPI{reply: "A chair."}
	n := newTestNarrator(t, api, true)

	out, err := n.Narrate(context.Background(), sceneRequest())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Text, test.ShouldEqual, "A chair.")
	test.That(t, out.Audio, test.ShouldBeEmpty)
	test.That(t, api.speechCalls.Load(), test.ShouldEqual, 0)
}

func TestNarrateEmptyRequest(t *testing.T) {
	api := &fakeAPI{reply: "unused"}
	n := newTestNarrator(t, api, false)

	out, err := n.Narrate(context.Background(), narration.Build(nil, narration.PolicyHazard))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Text, test.ShouldEqual, narration.NothingDetected)
	test.That(t, api.chatCalls.Load(), test.ShouldEqual, 0)
	test.That(t, api.speechCalls.Load(), test.ShouldEqual, 0)
}

func TestNarrateFailures(t *testing.T) {
	t.Run("chat error", func(t *testing.T) {
		api := &fakeAPI{failChat: true}
		n := newTestNarrator(t, api, false)
		_, err := n.Narrate(context.Background(), sceneRequest())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "chat completion failed")
		test.That(t, api.speechCalls.Load(), test.ShouldEqual, 0)
	})

	t.Run("blank reply", func(t *testing.T) {
		api := &fakeAPI{reply: "   "}
		n := newTestNarrator(t, api, false)
		_, err := n.Narrate(context.Background(), sceneRequest())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "empty description")
	})

	t.Run("no audio", func(t *testing.T) {
		api := &fakeAPI{reply: "A chair."}
		n := newTestNarrator(t, api, false)
		_, err := n.Narrate(context.Background(), sceneRequest())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "no audio")
	})
}

func TestConfig(t *testing.T) {
	err := (&Config{}).Validate("narrator.attributes")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"api_key" is required`)

	_, err = NewNarrator(&Config{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	conf := (&Config{APIKey: "k", Voice: "nova"}).withDefaults()
	test.That(t, conf.ChatModel, test.ShouldEqual, DefaultChatModel)
	test.That(t, conf.SpeechModel, test.ShouldEqual, DefaultSpeechModel)
	test.That(t, conf.Voice, test.ShouldEqual, "nova")
}

func TestWavDuration(t *testing.T) {
	_, err := wavDuration([]byte("not a wav file at all"))
	test.That(t, err, test.ShouldNotBeNil)
}
