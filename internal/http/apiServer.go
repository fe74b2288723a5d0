package http

import (
	"context"
	"io"
	"log"
	"net/http"
	"sync"

	"molva/internal/api"
	"molva/internal/filestore"
	"molva/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(handlers *api.API, wsServer *ws.Server, objects *filestore.LocalObjectStore, addr string) *APIServer {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /api/auth/register", handlers.RegisterHandler)
	mux.HandleFunc("POST /api/auth/login", handlers.LoginHandler)
	mux.HandleFunc("POST /api/auth/logoff", handlers.LogoffHandler)

	// Chats
	mux.HandleFunc("POST /api/chats", handlers.RequireAuth(handlers.CreateChatHandler))
	mux.HandleFunc("POST /api/chats/ai", handlers.RequireAuth(handlers.CreateAIChatHandler))
	mux.HandleFunc("POST /api/chats/{chatId}/accept", handlers.RequireAuth(handlers.AcceptChatHandler))
	mux.HandleFunc("DELETE /api/chats/{chatId}", handlers.RequireAuth(handlers.DeleteChatHandler))
	mux.HandleFunc("GET /api/chats/pending", handlers.RequireAuth(handlers.PendingChatsHandler))
	mux.HandleFunc("GET /api/chats", handlers.RequireAuth(handlers.UserChatsHandler))

	// Messages
	mux.HandleFunc("POST /api/messages", handlers.RequireAuth(handlers.SendMessageHandler))
	mux.HandleFunc("GET /api/messages/{chatId}", handlers.RequireAuth(handlers.MessagesHandler))
	mux.HandleFunc("PUT /api/messages/{messageId}", handlers.RequireAuth(handlers.EditMessageHandler))
	mux.HandleFunc("DELETE /api/messages/{messageId}", handlers.RequireAuth(handlers.DeleteMessageHandler))

	// Uploads, AI, push
	mux.HandleFunc("POST /api/upload", handlers.RequireAuth(handlers.UploadHandler))
	mux.HandleFunc("POST /api/ai/chat", handlers.RequireAuth(handlers.AIChatHandler))
	mux.HandleFunc("POST /api/push/subscribe", handlers.RequireAuth(handlers.PushSubscribeHandler))

	// Uploaded media
	mux.HandleFunc("GET /files/{name}", newFileHandler(objects))

	// WebSocket endpoint
	mux.HandleFunc("/api/socket", wsServer.HandleConnections)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func newFileHandler(objects *filestore.LocalObjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := objects.Open(r.PathValue("name"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(w, f); err != nil {
			log.Printf("error serving file: %v", err)
		}
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
