package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Room is the handle returned by the video-room collaborator. The backend
// never joins the room; it only hands the ids to the participants.
type Room struct {
	RoomID    string `json:"room_id"`
	JoinToken string `json:"join_token"`
}

type RoomProvider interface {
	CreateRoom(ctx context.Context, sessionID uuid.UUID) (*Room, error)
}

// RoomAPIService provisions rooms from an external HTTP room service.
type RoomAPIService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRoomAPIService(baseURL, apiKey string) *RoomAPIService {
	return &RoomAPIService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *RoomAPIService) CreateRoom(ctx context.Context, sessionID uuid.UUID) (*Room, error) {
	payload, err := json.Marshal(map[string]string{"name": "session-" + sessionID.String()})
	if err != nil {
		return nil, fmt.Errorf("encode room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/rooms", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build room request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("create room: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, fmt.Errorf("decode room response: %w", err)
	}
	if room.RoomID == "" {
		return nil, fmt.Errorf("create room: provider returned empty room id")
	}
	return &room, nil
}

// LocalRoomService generates room handles without an external provider.
// Used when ROOM_API_URL is unconfigured (development, tests).
type LocalRoomService struct{}

func NewLocalRoomService() *LocalRoomService {
	return &LocalRoomService{}
}

func (*LocalRoomService) CreateRoom(_ context.Context, sessionID uuid.UUID) (*Room, error) {
	return &Room{
		RoomID:    "local-" + sessionID.String(),
		JoinToken: uuid.NewString(),
	}, nil
}
