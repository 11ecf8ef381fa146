package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/config"
	filedomain "enterprise-api/backend/internal/file/domain"
	"enterprise-api/backend/internal/file/storage"
	"enterprise-api/backend/internal/mfa/sms"
	"enterprise-api/backend/internal/notification/sender"
	"enterprise-api/backend/internal/security"
	"enterprise-api/backend/internal/telemetry"
	telemetryotel "enterprise-api/backend/internal/telemetry/otel"
	"enterprise-api/backend/internal/telemetry/producer"
)

// setupTelemetry builds the OTel providers and installs them globally. An empty endpoint yields no-op exporters.
func setupTelemetry(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*telemetryotel.Providers, error) {
	p, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, cfg.OTelServiceName, cfg.OTelInsecure, log)
	if err != nil {
		return nil, err
	}
	p.SetGlobal()
	return p, nil
}

// auditEmitter fans audit events out to OTel logs and, when KAFKA_BROKERS is set, to the audit topic.
// The returned func closes the Kafka writer.
func auditEmitter(cfg *config.Config, p *telemetryotel.Providers, log logrus.FieldLogger) (telemetry.EventEmitter, func()) {
	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(p.LoggerProvider)}
	closeFn := func() {}
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kp, err := producer.NewKafkaProducer(brokers, cfg.AuditKafkaTopic)
		if err != nil || kp == nil {
			log.WithError(err).Warn("audit kafka producer disabled")
			return telemetry.Multi(emitters...), closeFn
		}
		var stream producer.Producer = kp
		emitters = append(emitters, stream)
		closeFn = func() {
			if err := stream.Close(); err != nil {
				log.WithError(err).Warn("close kafka producer")
			}
		}
		log.WithField("topic", cfg.AuditKafkaTopic).Info("audit events streamed to kafka")
	}
	return telemetry.Multi(emitters...), closeFn
}

// tokenProvider signs access tokens with JWT_PRIVATE_KEY/JWT_PUBLIC_KEY when both are set, else with JWT_SECRET.
func tokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	opts := security.TokenOptions{
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	}
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
		return security.NewKeyTokenProvider(priv, pub, cfg.JWTRefreshSecret, opts)
	}
	return security.NewTokenProvider(cfg.JWTSecret, cfg.JWTRefreshSecret, opts)
}

func fileStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case filedomain.StorageS3:
		client, err := storage.NewS3Client(ctx, storage.S3Options{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Endpoint:        cfg.AWSS3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3(client, cfg.AWSS3Bucket), nil
	case filedomain.StorageLocal:
		local, err := storage.NewLocal(cfg.UploadPath)
		if err != nil {
			return nil, err
		}
		return local, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_TYPE %q", cfg.StorageType)
	}
}

func senders(cfg *config.Config, log logrus.FieldLogger) (sender.EmailSender, sender.SMSSender, error) {
	return sender.Resolve(sender.SMTPConfig{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		Username: cfg.MailUser,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
	}, sms.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.TwilioBaseURL), log)
}
