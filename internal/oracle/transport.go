package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const systemInstruction = "أنت الحديقة المرعبة AI. ردودك قصيرة، غامضة، ومرعبة جداً بالعربية."

// DefaultVoice is the prebuilt voice the live model speaks with.
const DefaultVoice = "Kore"

// Event is one decoded message from the live model.
type Event struct {
	InputText    string
	OutputText   string
	Interrupted  bool
	TurnComplete bool
	Audio        []byte
}

// Conn is an open bidirectional speech session.
type Conn interface {
	// SendAudio streams one raw 16 kHz PCM frame.
	SendAudio(pcm []byte) error

	// EndAudio tells the server no more input follows.
	EndAudio() error

	// Receive blocks for the next event. It fails once the connection closes.
	Receive() (Event, error)

	Close() error
}

// Dialer opens live speech sessions.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebSocketDialer connects to a BidiGenerateContent-style websocket endpoint.
type WebSocketDialer struct {
	url    string
	apiKey string
	model  string
	voice  string
	dialer *websocket.Dialer
}

func NewWebSocketDialer(endpoint, apiKey, model string) *WebSocketDialer {
	return &WebSocketDialer{
		url:    endpoint,
		apiKey: apiKey,
		model:  model,
		voice:  DefaultVoice,
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second, Proxy: http.ProxyFromEnvironment},
	}
}

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model                    string        `json:"model"`
	GenerationConfig         liveGenConfig `json:"generationConfig"`
	SystemInstruction        content       `json:"systemInstruction"`
	InputAudioTranscription  struct{}      `json:"inputAudioTranscription"`
	OutputAudioTranscription struct{}      `json:"outputAudioTranscription"`
}

type liveGenConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks    []inlineData `json:"mediaChunks,omitempty"`
	AudioStreamEnd bool         `json:"audioStreamEnd,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}

type serverMessage struct {
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	ServerContent *struct {
		Interrupted         bool           `json:"interrupted"`
		TurnComplete        bool           `json:"turnComplete"`
		InputTranscription  *transcription `json:"inputTranscription"`
		OutputTranscription *transcription `json:"outputTranscription"`
		ModelTurn           *content       `json:"modelTurn"`
	} `json:"serverContent,omitempty"`
}

// Dial connects, sends the session setup and waits for the server to accept it.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(d.url)
	if err != nil {
		return nil, fmt.Errorf("parsing live url: %w", err)
	}
	if d.apiKey != "" {
		q := u.Query()
		q.Set("key", d.apiKey)
		u.RawQuery = q.Encode()
	}

	ws, _, err := d.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing live session: %w", err)
	}

	msg := setupMessage{Setup: setup{
		Model: "models/" + d.model,
		GenerationConfig: liveGenConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		SystemInstruction: content{Parts: []part{{Text: systemInstruction}}},
	}}
	msg.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = d.voice

	if err := ws.WriteJSON(msg); err != nil {
		ws.Close()
		return nil, fmt.Errorf("sending setup: %w", err)
	}

	var ack serverMessage
	if err := ws.ReadJSON(&ack); err != nil {
		ws.Close()
		return nil, fmt.Errorf("reading setup ack: %w", err)
	}
	if ack.SetupComplete == nil {
		ws.Close()
		return nil, fmt.Errorf("live session rejected setup")
	}

	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	writeMu sync.Mutex
	ws      *websocket.Conn
}

func (c *wsConn) SendAudio(pcm []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []inlineData{{MIMEType: InputMIMEType, Data: EncodeFrame(pcm)}},
	}})
}

func (c *wsConn) EndAudio() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(realtimeInputMessage{RealtimeInput: realtimeInput{AudioStreamEnd: true}})
}

func (c *wsConn) Receive() (Event, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return Event{}, err
	}

	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, fmt.Errorf("decoding live message: %w", err)
	}

	var ev Event
	sc := msg.ServerContent
	if sc == nil {
		return ev, nil
	}
	ev.Interrupted = sc.Interrupted
	ev.TurnComplete = sc.TurnComplete
	if sc.InputTranscription != nil {
		ev.InputText = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		ev.OutputText = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil && len(sc.ModelTurn.Parts) > 0 && sc.ModelTurn.Parts[0].InlineData != nil {
		audio, err := DecodeFrame(sc.ModelTurn.Parts[0].InlineData.Data)
		if err != nil {
			return Event{}, fmt.Errorf("decoding audio chunk: %w", err)
		}
		ev.Audio = audio
	}
	return ev, nil
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}
