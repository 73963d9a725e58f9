// Package dashboard serves the line status, inspection history and
// parameter tuning over HTTP, and pushes live events over a websocket.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	app "blister-inspector/internal/application"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/infrastructure/imaging"
	"blister-inspector/internal/log"
)

const (
	defaultLimit   = 20
	maxLimit       = 500
	statusInterval = time.Second
)

// StatusProvider returns the controller snapshot.
type StatusProvider interface {
	Status() app.Status
}

// ParamsStore is the tunable detection parameter set.
type ParamsStore interface {
	Current() entity.DetectionParams
	Update(p entity.DetectionParams) (entity.DetectionParams, error)
	Save() error
}

// Event is pushed to websocket clients.
type Event struct {
	Type       string             `json:"type"` // "status" or "inspection"
	Status     *app.Status        `json:"status,omitempty"`
	Inspection *entity.Inspection `json:"inspection,omitempty"`
	Thumbnail  string             `json:"thumbnail,omitempty"` // base64 JPEG
}

type Server struct {
	app         *fiber.App
	hub         *Hub
	status      StatusProvider
	inspections port.InspectionRepository
	params      ParamsStore
	thumbs      *imaging.Encoder
}

func NewServer(status StatusProvider, inspections port.InspectionRepository, params ParamsStore, thumbs *imaging.Encoder) *Server {
	s := &Server{
		hub:         NewHub(),
		status:      status,
		inspections: inspections,
		params:      params,
		thumbs:      thumbs,
	}

	a := fiber.New(fiber.Config{
		AppName:               "Blister Inspector",
		DisableStartupMessage: true,
	})

	api := a.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/inspections", s.handleInspections)
	api.Get("/stats", s.handleStats)
	api.Get("/params", s.handleGetParams)
	api.Put("/params", s.handlePutParams)

	a.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	a.Get("/ws", websocket.New(s.hub.serve))

	s.app = a
	return s
}

// Run listens on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dashboard listen: %w", err)
	}
	log.Info("dashboard listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve runs the dashboard on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.hub.Run(ctx)
	go s.pushStatus(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Warn("dashboard shutdown", "error", err)
		}
	}()

	if err := s.app.Listener(ln); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (s *Server) pushStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			st := s.status.Status()
			s.broadcast(Event{Type: "status", Status: &st})
		}
	}
}

func (s *Server) Name() string { return "dashboard" }

// Publish pushes the inspection with a thumbnail of the captured frame.
func (s *Server) Publish(ctx context.Context, inspection entity.Inspection) error {
	ev := Event{Type: "inspection", Inspection: &inspection}
	if inspection.Frame.Valid() && s.thumbs != nil {
		thumb, err := s.thumbs.Base64(inspection.Frame)
		if err != nil {
			return fmt.Errorf("thumbnail: %w", err)
		}
		ev.Thumbnail = thumb
	}
	return s.broadcast(ev)
}

func (s *Server) broadcast(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !s.hub.Broadcast(data) {
		return errors.New("dashboard broadcast queue full")
	}
	return nil
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(struct {
		app.Status
		Clients int `json:"clients"`
	}{s.status.Status(), s.hub.ClientCount()})
}

func (s *Server) handleInspections(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("limit must be in [1, %d]", maxLimit),
		})
	}

	recent, err := s.inspections.Recent(c.UserContext(), limit)
	if err != nil {
		log.Error("load inspections failed", "error", err)
		return fiber.ErrInternalServerError
	}
	if recent == nil {
		recent = []entity.Inspection{}
	}
	return c.JSON(recent)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.inspections.Stats(c.UserContext())
	if err != nil {
		log.Error("load stats failed", "error", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(stats)
}

func (s *Server) handleGetParams(c *fiber.Ctx) error {
	return c.JSON(s.params.Current())
}

// handlePutParams applies a full or partial parameter set. Fields absent
// from the body keep their current value.
func (s *Server) handlePutParams(c *fiber.Ctx) error {
	p := s.params.Current()
	if err := c.BodyParser(&p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	updated, err := s.params.Update(p)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, entity.ErrInvalidParams) {
			status = fiber.StatusUnprocessableEntity
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error(), "params": updated})
	}

	if err := s.params.Save(); err != nil {
		log.Warn("params not persisted", "error", err)
	}
	log.Info("params updated from dashboard", "params", updated)
	return c.JSON(updated)
}

var _ port.InspectionSink = (*Server)(nil)
