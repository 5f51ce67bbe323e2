package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in 100ms chunks to simulate a live microphone.
const chunkIntervalMs = 100

func main() {
	serverAddr := flag.String("server", "localhost:8080", "Interview service address")
	audioFile := flag.String("audio", "testdata/candidate-24khz.wav", "Path to WAV file (16-bit mono PCM)")
	role := flag.String("role", "Backend Engineer", "Role to interview for")
	organization := flag.String("org", "Acme", "Hiring organization")
	jobDescription := flag.String("jd", "", "Job description")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}
	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := int(binary.LittleEndian.Uint32(header[24:28]))
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)
	if audioFormat != 1 || numChannels != 1 || bitsPerSample != 16 {
		log.Fatal("Only 16-bit mono PCM supported")
	}

	sessionID := createSession(*serverAddr, *role, *organization, *jobDescription)
	log.Printf("Session created: %s", sessionID)

	wsURL := fmt.Sprintf("ws://%s/v1/sessions/%s/audio?rate=%d", *serverAddr, sessionID, sampleRate)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Failed to attach to session: %v", err)
	}
	defer ws.Close()

	done := make(chan struct{})
	go readFrames(ws, done)

	// bytes per 100ms at 16-bit mono
	chunkSize := sampleRate * 2 * chunkIntervalMs / 1000
	chunk := make([]byte, chunkSize)
	var totalBytes int64
	startTime := time.Now()

	for {
		n, err := f.Read(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}
		totalBytes += int64(n)
		if err := ws.WriteMessage(websocket.BinaryMessage, chunk[:n]); err != nil {
			log.Fatalf("Failed to send audio: %v", err)
		}
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	log.Printf("Audio sent: %d bytes in %v, waiting for the interview to finish", totalBytes, time.Since(startTime).Round(time.Millisecond))

	select {
	case <-done:
	case <-time.After(5 * time.Minute):
		log.Println("Timed out waiting for session end, requesting stop")
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`))
		<-done
	}
}

func createSession(addr, role, organization, jobDescription string) string {
	body, _ := json.Marshal(map[string]string{
		"role":           role,
		"organization":   organization,
		"jobDescription": jobDescription,
	})
	resp, err := http.Post("http://"+addr+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		log.Fatalf("Create session failed: status=%d body=%s", resp.StatusCode, payload)
	}
	var created struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		log.Fatalf("Failed to decode create response: %v", err)
	}
	return created.SessionID
}

func readFrames(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	var playbackBytes int64
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}
		if msgType == websocket.BinaryMessage {
			playbackBytes += int64(len(data))
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("Bad frame: %s", data)
			continue
		}
		switch frame["type"] {
		case "status":
			log.Printf("State: %v", frame["state"])
			if frame["state"] == "ENDED" {
				log.Printf("Playback audio received: %d bytes", playbackBytes)
				return
			}
		case "transcript":
			log.Printf("[%v] %v", frame["speaker"], frame["text"])
		case "questions":
			log.Printf("Questions asked: %v", frame["count"])
		case "result":
			pretty, _ := json.MarshalIndent(frame["result"], "", "  ")
			log.Printf("Result:\n%s", pretty)
		case "error":
			log.Printf("Error: %v", frame["message"])
		}
	}
}
