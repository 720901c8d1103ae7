// Package client talks to the notes API on behalf of notesctl.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"notely/internal/database/dto"
	"notely/internal/database/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrNotLoggedIn is returned by calls that need a token when none is set.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-success answer from the API.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Msg)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	token   string
	timeout time.Duration
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: 10 * time.Second,
	}
}

func (c *Client) Register(username, email, password string) (dto.AuthResponse, error) {
	var res dto.AuthResponse
	agent := fiber.Post(c.baseURL + "/api/auth/register").JSON(dto.RegisterRequest{Username: username, Email: email, Password: password})
	err := c.send(agent, http.StatusCreated, &res)
	return res, err
}

func (c *Client) Login(email, password string) (dto.AuthResponse, error) {
	var res dto.AuthResponse
	agent := fiber.Post(c.baseURL + "/api/auth/login").JSON(dto.LoginCredentials{Email: email, Password: password})
	err := c.send(agent, http.StatusOK, &res)
	return res, err
}

func (c *Client) ListNotes() ([]models.Note, error) {
	if c.token == "" {
		return nil, ErrNotLoggedIn
	}
	notes := []models.Note{}
	err := c.send(fiber.Get(c.baseURL+"/api/notes"), http.StatusOK, &notes)
	return notes, err
}

func (c *Client) GetNote(id uuid.UUID) (models.Note, error) {
	if c.token == "" {
		return models.Note{}, ErrNotLoggedIn
	}
	var note models.Note
	err := c.send(fiber.Get(c.noteURL(id)), http.StatusOK, &note)
	return note, err
}

func (c *Client) CreateNote(in dto.NoteInput) (models.Note, error) {
	if c.token == "" {
		return models.Note{}, ErrNotLoggedIn
	}
	var note models.Note
	err := c.send(fiber.Post(c.baseURL+"/api/notes").JSON(in), http.StatusCreated, &note)
	return note, err
}

func (c *Client) UpdateNote(id uuid.UUID, in dto.NoteInput) (models.Note, error) {
	if c.token == "" {
		return models.Note{}, ErrNotLoggedIn
	}
	var note models.Note
	err := c.send(fiber.Put(c.noteURL(id)).JSON(in), http.StatusOK, &note)
	return note, err
}

func (c *Client) DeleteNote(id uuid.UUID) error {
	if c.token == "" {
		return ErrNotLoggedIn
	}
	return c.send(fiber.Delete(c.noteURL(id)), http.StatusOK, nil)
}

func (c *Client) noteURL(id uuid.UUID) string {
	return c.baseURL + "/api/notes/" + id.String()
}

// send performs the request and decodes a response with status want into
// out. The agent is released afterwards.
func (c *Client) send(agent *fiber.Agent, want int, out any) error {
	agent.Timeout(c.timeout)
	if c.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request failed: %w", errors.Join(errs...))
	}
	if code != want {
		var msg dto.Message
		if err := json.Unmarshal(body, &msg); err != nil || msg.Msg == "" {
			msg.Msg = strings.TrimSpace(string(body))
		}
		return &APIError{Status: code, Msg: msg.Msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
