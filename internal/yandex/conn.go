// Package yandex talks to Yandex SpeechKit over gRPC: streaming recognition
// for voice questions and utterance synthesis for persona replies.
package yandex

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
)

const (
	DefaultSTTEndpoint = "stt.api.cloud.yandex.net:443"
	DefaultTTSEndpoint = "tts.api.cloud.yandex.net:443"
)

// Credentials authenticate every SpeechKit call.
type Credentials struct {
	APIKey   string
	FolderID string
}

func (c Credentials) outgoing(ctx context.Context) context.Context {
	md := metadata.New(map[string]string{
		"authorization": "Api-Key " + c.APIKey,
		"x-folder-id":   c.FolderID,
	})
	return metadata.NewOutgoingContext(ctx, md)
}

// dial opens a client connection. Without options it uses system TLS.
func dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(nil)))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc connection: %w", err)
	}
	return conn, nil
}
