package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/gofiber/fiber/v2/log"
	"google.golang.org/api/option"
)

// Firebase holds the clients the server needs from one Firebase app. Either
// client is nil when it was not requested.
type Firebase struct {
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
}

type FirebaseOptions struct {
	CredentialsFile string
	ProjectID       string
	WithAuth        bool
	WithFirestore   bool
}

// InitFirebase initializes the Firebase app. Without a credentials file the
// application default credentials are used, which also covers the emulators.
func InitFirebase(ctx context.Context, opts FirebaseOptions) (*Firebase, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	} else {
		log.Info("Firebase: No service account configured, using application default credentials")
	}

	var conf *firebase.Config
	if opts.ProjectID != "" {
		conf = &firebase.Config{ProjectID: opts.ProjectID}
	}

	app, err := firebase.NewApp(ctx, conf, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	fb := &Firebase{App: app}

	if opts.WithAuth {
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase auth client: %w", err)
		}
		fb.Auth = client
		log.Info("Firebase: Authentication enabled")
	}

	if opts.WithFirestore {
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		fb.Firestore = client
		log.Info("Firebase: Firestore enabled")
	}

	return fb, nil
}

// Close releases the Firestore connection.
func (f *Firebase) Close() error {
	if f.Firestore == nil {
		return nil
	}
	return f.Firestore.Close()
}
