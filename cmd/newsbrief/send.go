package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/newsbrief/internal/config"
	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/mailer"
	"github.com/deusflow/newsbrief/internal/metrics"
	"github.com/deusflow/newsbrief/internal/subscribers"
)

func sendCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Email a generated newsletter to the subscriber list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateMail(); err != nil {
				return err
			}
			if name == "" {
				name = cfg.Newsletters[0].Name
			}
			n, err := cfg.Newsletter(name)
			if err != nil {
				return err
			}
			return send(cmd.Context(), cfg, n)
		},
	}
	cmd.Flags().StringVar(&name, "newsletter", "", "newsletter to send (default: the first configured)")
	return cmd
}

func send(ctx context.Context, cfg *config.Config, n config.Newsletter) error {
	doc, err := os.ReadFile(n.OutputHTML)
	if err != nil {
		return fmt.Errorf("read %s: %w", n.OutputHTML, err)
	}

	subs, err := subscribers.NewClient(ctx, cfg.FirebaseCredentials, cfg.FirebaseDatabaseURL)
	if err != nil {
		return err
	}
	emails, err := subs.Emails(ctx)
	if err != nil {
		return err
	}
	logger.Info("subscribers loaded", "count", len(emails))

	m := metrics.New()
	metrics.Publish(m)

	ml := mailer.New(mailer.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SenderEmail,
		Password:  cfg.SenderPassword,
		From:      cfg.SenderEmail,
		To:        cfg.MailTo,
		BatchSize: cfg.MailBatchSize,
		Pause:     cfg.MailPause,
	})
	ml.Metrics = m

	subject := mailer.Subject(time.Now(), n.RenderOptions(cfg.Common).Brand.Title)
	res, err := ml.SendBatched(ctx, subject, string(doc), emails)
	if err != nil {
		m.SetError(err.Error())
		return fmt.Errorf("send %s: %w", n.Name, err)
	}
	m.SetLastRun()
	logger.Info("newsletter sent", "newsletter", n.Name, "recipients", len(emails), "batches", res.Batches)
	return nil
}
