package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/width"

	"watering_notification_bot/internal/domain/classifier"
	"watering_notification_bot/internal/domain/plant"
	"watering_notification_bot/internal/domain/planting"
	"watering_notification_bot/internal/domain/sensor"
	"watering_notification_bot/internal/domain/user"
	idb "watering_notification_bot/internal/infra/database"
)

// MinClassificationConfidence is the lowest classifier confidence that may start a registration.
const MinClassificationConfidence = 0.85

// Custom application-level errors for the registration conversation
var (
	ErrLowConfidence         = errors.New("classification confidence too low")
	ErrUnknownPlant          = errors.New("classified plant is not in the catalogue")
	ErrNoPendingRegistration = errors.New("no registration step is waiting for this answer")
	ErrInvalidDeviceID       = errors.New("device id must be a number between 0 and 7")
	ErrAlreadyRegistered     = errors.New("plant is already registered on this device")
	ErrPlantingNotFound      = errors.New("planting not found")
)

// RegistrationService drives the per-user registration conversation:
// photo -> classification -> confirmation -> sensor channel -> planting.
type RegistrationService struct {
	users      user.Repository
	plants     plant.Repository
	plantings  planting.Repository
	classifier classifier.Client
	logger     *logrus.Entry
}

func NewRegistrationService(ur user.Repository, pr plant.Repository, plr planting.Repository, cc classifier.Client, logger *logrus.Entry) *RegistrationService {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RegistrationService{
		users:      ur,
		plants:     pr,
		plantings:  plr,
		classifier: cc,
		logger:     logger,
	}
}

// HandlePhoto classifies the photo and, when the result is confident and known, moves the
// user to AwaitingConfirmation. The classifier result is returned even on ErrLowConfidence.
func (s *RegistrationService) HandlePhoto(ctx context.Context, userID string, image []byte) (*plant.Plant, *classifier.Result, error) {
	log := s.logger.WithField("user_id", userID)

	if _, err := s.users.GetOrCreate(ctx, userID); err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	result, err := s.classifier.Classify(ctx, image)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to classify image: %w", err)
	}
	log = log.WithFields(logrus.Fields{"species_id": result.SpeciesID, "confidence": result.Confidence})

	if result.Confidence < MinClassificationConfidence {
		log.Info("Classification below confidence threshold")
		return nil, result, ErrLowConfidence
	}

	plantID, err := strconv.ParseInt(strings.TrimSpace(result.SpeciesID), 10, 64)
	if err != nil {
		log.Warn("Classifier returned a non-numeric species id")
		return nil, result, fmt.Errorf("%w: %q", ErrUnknownPlant, result.SpeciesID)
	}
	p, err := s.plants.GetByID(ctx, plantID)
	if err != nil {
		if errors.Is(err, idb.ErrPlantNotFound) {
			log.Warn("Classified species is not in the plant catalogue")
			return nil, result, fmt.Errorf("%w: %d", ErrUnknownPlant, plantID)
		}
		return nil, result, fmt.Errorf("failed to load plant %d: %w", plantID, err)
	}

	if err := s.users.UpdateState(ctx, userID, user.AwaitingConfirmation{PlantID: p.ID}); err != nil {
		return nil, result, fmt.Errorf("failed to update user state: %w", err)
	}
	log.Info("Awaiting confirmation of classified plant")
	return p, result, nil
}

// Confirm answers the yes/no question. A "no" ends the conversation and returns a nil plant.
func (s *RegistrationService) Confirm(ctx context.Context, userID string, accepted bool) (*plant.Plant, error) {
	u, err := s.users.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	pending, ok := u.State.(user.AwaitingConfirmation)
	if !ok {
		return nil, ErrNoPendingRegistration
	}

	if !accepted {
		if err := s.users.UpdateState(ctx, userID, user.Idle{}); err != nil {
			return nil, fmt.Errorf("failed to update user state: %w", err)
		}
		return nil, nil
	}

	p, err := s.plants.GetByID(ctx, pending.PlantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plant %d: %w", pending.PlantID, err)
	}
	if err := s.users.UpdateState(ctx, userID, user.AwaitingDeviceID{PlantID: p.ID}); err != nil {
		return nil, fmt.Errorf("failed to update user state: %w", err)
	}
	return p, nil
}

// SubmitDeviceID parses the sensor channel and registers the planting. On ErrInvalidDeviceID
// the user stays in AwaitingDeviceID so they can try again.
func (s *RegistrationService) SubmitDeviceID(ctx context.Context, userID, text string) (*planting.Planting, error) {
	u, err := s.users.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	pending, ok := u.State.(user.AwaitingDeviceID)
	if !ok {
		return nil, ErrNoPendingRegistration
	}

	deviceID, err := ParseDeviceID(text)
	if err != nil {
		return nil, err
	}

	p, err := s.plants.GetByID(ctx, pending.PlantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plant %d: %w", pending.PlantID, err)
	}

	pl := &planting.Planting{UserID: userID, PlantID: p.ID, DeviceID: deviceID, PlantName: p.DisplayName()}
	regErr := s.plantings.Register(ctx, pl)
	if regErr != nil && !errors.Is(regErr, idb.ErrDuplicatePlanting) {
		return nil, fmt.Errorf("failed to register planting: %w", regErr)
	}

	if err := s.users.UpdateState(ctx, userID, user.Idle{}); err != nil {
		return nil, fmt.Errorf("failed to update user state: %w", err)
	}
	if regErr != nil {
		return nil, ErrAlreadyRegistered
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"plant_id":    pl.PlantID,
		"device_id":   pl.DeviceID,
		"planting_id": pl.ID,
	}).Info("Planting registered")
	return pl, nil
}

// ParseDeviceID accepts "3" as well as full-width "３".
func ParseDeviceID(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(width.Fold.String(text)))
	if err != nil {
		return 0, ErrInvalidDeviceID
	}
	if sensor.ValidateChannel(n) != nil {
		return 0, ErrInvalidDeviceID
	}
	return n, nil
}

// Cancel abandons any registration in progress.
func (s *RegistrationService) Cancel(ctx context.Context, userID string) error {
	if _, err := s.users.GetOrCreate(ctx, userID); err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	return s.users.UpdateState(ctx, userID, user.Idle{})
}

// CurrentState returns the conversation state, creating the user when needed.
func (s *RegistrationService) CurrentState(ctx context.Context, userID string) (user.State, error) {
	u, err := s.users.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u.State, nil
}

func (s *RegistrationService) ListPlantings(ctx context.Context, userID string) ([]*planting.Planting, error) {
	return s.plantings.ListByUser(ctx, userID)
}

// DeletePlanting removes one of the user's plantings and returns it.
func (s *RegistrationService) DeletePlanting(ctx context.Context, userID string, plantingID int64) (*planting.Planting, error) {
	pl, err := s.plantings.GetByID(ctx, plantingID)
	if err != nil {
		if errors.Is(err, idb.ErrPlantingNotFound) {
			return nil, ErrPlantingNotFound
		}
		return nil, fmt.Errorf("failed to load planting %d: %w", plantingID, err)
	}
	if pl.UserID != userID {
		return nil, ErrPlantingNotFound
	}

	if err := s.plantings.Delete(ctx, plantingID, userID); err != nil {
		if errors.Is(err, idb.ErrPlantingNotFound) {
			return nil, ErrPlantingNotFound
		}
		return nil, fmt.Errorf("failed to delete planting %d: %w", plantingID, err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "planting_id": plantingID}).Info("Planting deleted")
	return pl, nil
}
