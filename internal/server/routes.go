package server

import (
	"errors"
	"fmt"
	"runtime"

	"notely/internal/auth"
	"notely/internal/database/dto"
	"notely/internal/database/models"
	"notely/internal/database/repositories"
	"notely/internal/notes"
	"notely/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgMissingFields      = "Please enter all fields"
	msgMissingNoteFields  = "Please enter title and content"
	msgUserExists         = "User with that email or username already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidBody        = "Invalid request body"
	msgInvalidNoteID      = "Invalid note ID format"
	msgNoteNotFound       = "Note not found"
)

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Notes App Backend is running!")
	})
	s.App.Get("/health", s.healthHandler)
	// endpoint to monitor memory
	s.App.Get("/memory", func(c *fiber.Ctx) error {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		memoryInfo := fmt.Sprintf("Alloc = %v MiB, TotalAlloc = %v MiB, Sys = %v MiB, NumGC = %v",
			bToMb(m.Alloc), bToMb(m.TotalAlloc), bToMb(m.Sys), m.NumGC)
		return c.SendString(memoryInfo)
	})

	api := s.App.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", s.registerUser)
	authRoutes.Post("/login", s.login)

	noteRoutes := api.Group("/notes", auth.Gate(s.cfg.JWTSecret))
	noteRoutes.Post("/", s.createNote)
	noteRoutes.Get("/", s.getAllNotes)
	noteRoutes.Get("/:id", s.getSingleNote)
	noteRoutes.Put("/:id", s.updateNote)
	noteRoutes.Delete("/:id", s.deleteNote)
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := s.db.Health()
	if health["status"] != "up" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}
	return c.JSON(health)
}

func (s *FiberServer) registerUser(c *fiber.Ctx) error {
	req := dto.RegisterRequest{}
	if err := c.BodyParser(&req); err != nil {
		return message(c, fiber.StatusBadRequest, msgInvalidBody)
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return message(c, fiber.StatusBadRequest, msgMissingFields)
	}

	exists, err := s.users.Exists(c.Context(), req.Username, req.Email)
	if err != nil {
		return s.serverError(c, "registration", err)
	}
	if exists {
		return message(c, fiber.StatusBadRequest, msgUserExists)
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return message(c, fiber.StatusBadRequest, "Password is too long")
	}
	if err != nil {
		return s.serverError(c, "registration", err)
	}

	user := models.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	err = s.users.Create(c.Context(), &user)
	if errors.Is(err, repositories.ErrDuplicate) {
		return message(c, fiber.StatusBadRequest, msgUserExists)
	}
	if err != nil {
		return s.serverError(c, "registration", err)
	}

	return s.sendToken(c, fiber.StatusCreated, "User registered successfully", &user, "registration")
}

func (s *FiberServer) login(c *fiber.Ctx) error {
	credentials := dto.LoginCredentials{}
	if err := c.BodyParser(&credentials); err != nil {
		return message(c, fiber.StatusBadRequest, msgInvalidBody)
	}
	if credentials.Email == "" || credentials.Password == "" {
		return message(c, fiber.StatusBadRequest, msgMissingFields)
	}

	user, err := s.users.GetByEmail(c.Context(), credentials.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		return message(c, fiber.StatusBadRequest, msgInvalidCredentials)
	}
	if err != nil {
		return s.serverError(c, "login", err)
	}
	// Same answer as an unknown email.
	if !utils.CheckPasswordHash(credentials.Password, user.PasswordHash) {
		return message(c, fiber.StatusBadRequest, msgInvalidCredentials)
	}

	return s.sendToken(c, fiber.StatusOK, "Logged in successfully", user, "login")
}

func (s *FiberServer) sendToken(c *fiber.Ctx, status int, msg string, user *models.User, during string) error {
	token, err := s.tokens.Issue(auth.Identity{ID: user.ID, Username: user.Username})
	if err != nil {
		return s.serverError(c, during, err)
	}
	return c.Status(status).JSON(dto.AuthResponse{
		Msg:   msg,
		Token: token,
		User:  dto.PublicUser{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

func (s *FiberServer) createNote(c *fiber.Ctx) error {
	caller, ok := auth.Caller(c)
	if !ok {
		return message(c, fiber.StatusUnauthorized, auth.MsgInvalidToken)
	}
	input := dto.NoteInput{}
	if err := c.BodyParser(&input); err != nil {
		return message(c, fiber.StatusBadRequest, msgInvalidBody)
	}

	note, err := s.notes.Create(c.Context(), caller.ID, noteInput(input))
	if err != nil {
		return s.noteError(c, "note creation", err)
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

func (s *FiberServer) getAllNotes(c *fiber.Ctx) error {
	caller, ok := auth.Caller(c)
	if !ok {
		return message(c, fiber.StatusUnauthorized, auth.MsgInvalidToken)
	}
	list, err := s.notes.List(c.Context(), caller.ID)
	if err != nil {
		return s.noteError(c, "note retrieval", err)
	}
	return c.JSON(list)
}

func (s *FiberServer) getSingleNote(c *fiber.Ctx) error {
	caller, ok := auth.Caller(c)
	if !ok {
		return message(c, fiber.StatusUnauthorized, auth.MsgInvalidToken)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, msgInvalidNoteID)
	}

	note, err := s.notes.Get(c.Context(), caller.ID, id)
	if err != nil {
		return s.noteError(c, "single note retrieval", err)
	}
	return c.JSON(note)
}

func (s *FiberServer) updateNote(c *fiber.Ctx) error {
	caller, ok := auth.Caller(c)
	if !ok {
		return message(c, fiber.StatusUnauthorized, auth.MsgInvalidToken)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, msgInvalidNoteID)
	}
	input := dto.NoteInput{}
	if err := c.BodyParser(&input); err != nil {
		return message(c, fiber.StatusBadRequest, msgInvalidBody)
	}

	note, err := s.notes.Update(c.Context(), caller.ID, id, noteInput(input))
	if err != nil {
		return s.noteError(c, "note update", err)
	}
	return c.JSON(note)
}

func (s *FiberServer) deleteNote(c *fiber.Ctx) error {
	caller, ok := auth.Caller(c)
	if !ok {
		return message(c, fiber.StatusUnauthorized, auth.MsgInvalidToken)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return message(c, fiber.StatusBadRequest, msgInvalidNoteID)
	}

	if err := s.notes.Delete(c.Context(), caller.ID, id); err != nil {
		return s.noteError(c, "note deletion", err)
	}
	return c.JSON(dto.DeleteResponse{Msg: "Note deleted successfully", ID: id})
}

func noteInput(in dto.NoteInput) notes.Input {
	input := notes.Input{Title: in.Title, Content: in.Content}
	if in.Tags != nil {
		input.Tags = *in.Tags
		if input.Tags == nil {
			input.Tags = []string{}
		}
	}
	return input
}

func (s *FiberServer) noteError(c *fiber.Ctx, during string, err error) error {
	switch {
	case errors.Is(err, notes.ErrMissingFields):
		return message(c, fiber.StatusBadRequest, msgMissingNoteFields)
	case errors.Is(err, repositories.ErrNotFound):
		return message(c, fiber.StatusNotFound, msgNoteNotFound)
	default:
		return s.serverError(c, during, err)
	}
}

func (s *FiberServer) serverError(c *fiber.Ctx, during string, err error) error {
	s.log.Error("request failed", "during", during, "method", c.Method(), "path", c.Path(), "error", err)
	return message(c, fiber.StatusInternalServerError, "Server Error during "+during)
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(dto.Message{Msg: msg})
}
