package clients

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"google.golang.org/api/option"
)

// Firebase bundles the app with the two clients the service uses.
type Firebase struct {
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
}

// InitFirebase uses the credentials file when it exists and falls back to
// application default credentials otherwise.
func InitFirebase(ctx context.Context, projectID, credentialsFile string) (*Firebase, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err == nil {
			opts = append(opts, option.WithCredentialsFile(credentialsFile))
		}
	}

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain firebase auth client: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain firestore client: %w", err)
	}
	return &Firebase{App: app, Auth: authClient, Firestore: fs}, nil
}

func (f *Firebase) Close() error {
	return f.Firestore.Close()
}

// VerifiedUser is the part of a Firebase ID token the service cares about.
type VerifiedUser struct {
	UID         string
	Email       string
	DisplayName string
}

// VerifyIDToken checks a token minted by Firebase Auth on the client.
func (f *Firebase) VerifyIDToken(ctx context.Context, idToken string) (*VerifiedUser, error) {
	tok, err := f.Auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	u := &VerifiedUser{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		u.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		u.DisplayName = name
	}
	return u, nil
}
