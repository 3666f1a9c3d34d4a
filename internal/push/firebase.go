package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medcontrol/internal/registry"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var ErrEmptyToken = errors.New("device token is empty")

// Sender is the part of the FCM client used here. *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FirebaseService struct {
	client Sender
	logger *zap.Logger
}

// NewFirebaseService builds an FCM client from a service account file.
func NewFirebaseService(ctx context.Context, credentialsPath string, logger *zap.Logger) (*FirebaseService, error) {
	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}

	logger.Info("Firebase service initialized")

	return NewFirebaseServiceWithSender(client, logger), nil
}

func NewFirebaseServiceWithSender(client Sender, logger *zap.Logger) *FirebaseService {
	return &FirebaseService{
		client: client,
		logger: logger,
	}
}

// SendAlarm pushes an alarm as a data message. The app builds the visible
// notification itself from the payload.
func (s *FirebaseService) SendAlarm(ctx context.Context, deviceToken, event, payload string) error {
	if deviceToken == "" {
		return ErrEmptyToken
	}

	ttl := time.Minute

	message := &messaging.Message{
		Token: deviceToken,
		Data: map[string]string{
			"type":      event,
			"payload":   payload,
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &ttl,
		},
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		if IsInvalidTokenError(err) {
			s.logger.Warn("Device token no longer valid", zap.String("token", maskToken(deviceToken)))
		}
		return fmt.Errorf("error sending alarm push: %w", err)
	}

	s.logger.Debug("Alarm push sent", zap.String("message_id", response))
	return nil
}

// Device returns a registry connection that delivers through FCM to token.
func (s *FirebaseService) Device(token string) *Device {
	return &Device{token: token, service: s}
}

func (s *FirebaseService) Conn(token string) registry.Conn {
	return s.Device(token)
}

// Device is an app install reachable by push. Its identity is the token.
type Device struct {
	token   string
	service *FirebaseService
}

func (d *Device) ID() string {
	return "fcm:" + d.token
}

func (d *Device) Send(ctx context.Context, event, payload string) error {
	return d.service.SendAlarm(ctx, d.token, event, payload)
}

// IsInvalidTokenError reports whether FCM rejected the token itself.
func IsInvalidTokenError(err error) bool {
	if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsSenderIDMismatch(err) {
		return true
	}
	return false
}

func maskToken(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10] + "..."
}
