package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"molva/internal/ai"
	"molva/internal/auth"
	"molva/internal/chat"
	"molva/internal/content"
	"molva/internal/filestore"
	"molva/internal/models"
	"molva/internal/push"
)

type contextKey string

const userIDKey contextKey = "userID"

// maxUploadSize bounds a single media upload.
const maxUploadSize = 25 << 20

type API struct {
	auth      *auth.Service
	service   *chat.Service
	objects   filestore.ObjectStore
	assistant *ai.Assistant
	notifier  *push.Notifier
	logger    *slog.Logger
}

func New(authService *auth.Service, service *chat.Service, objects filestore.ObjectStore, assistant *ai.Assistant, notifier *push.Notifier, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		auth:      authService,
		service:   service,
		objects:   objects,
		assistant: assistant,
		notifier:  notifier,
		logger:    logger,
	}
}

// RequireAuth resolves the bearer token and stores the user identity in the
// request context.
func (a *API) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("token")
		if token == "" {
			if c, err := r.Cookie("token"); err == nil {
				token = c.Value
			}
		}
		userID, err := a.auth.GetUserID(token)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func requestUser(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// --- Auth ---

func (a *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, err := a.auth.Register(content.Sanitize(req.Username), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			a.writeJSON(w, http.StatusConflict, map[string]string{"message": err.Error()})
			return
		}
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, user)
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, token, err := a.auth.Login(req.Email, req.Password)
	if err != nil {
		a.writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Login failed"})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (a *API) LogoffHandler(w http.ResponseWriter, r *http.Request) {
	if token := r.Header.Get("token"); token != "" {
		a.auth.Logoff(token)
	}
	w.WriteHeader(http.StatusOK)
}

// --- Chats ---

func (a *API) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantsEmails []string `json:"participantsEmails"`
		IsGroupChat        bool     `json:"isGroupChat"`
		Name               string   `json:"name"`
		IsAIChat           bool     `json:"isAIChat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	newChat, err := a.service.CreateChat(r.Context(), chat.CreateChatRequest{
		ParticipantEmails: req.ParticipantsEmails,
		IsGroup:           req.IsGroupChat,
		Name:              req.Name,
		IsAI:              req.IsAIChat,
		InitiatorID:       requestUser(r),
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, newChat)
}

func (a *API) CreateAIChatHandler(w http.ResponseWriter, r *http.Request) {
	newChat, err := a.service.CreateAIChat(r.Context(), requestUser(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, newChat)
}

func (a *API) AcceptChatHandler(w http.ResponseWriter, r *http.Request) {
	accepted, err := a.service.AcceptChat(r.Context(), r.PathValue("chatId"), requestUser(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"message": "Chat accepted successfully", "chat": accepted})
}

func (a *API) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteChat(r.Context(), r.PathValue("chatId"), requestUser(r)); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted successfully"})
}

func (a *API) PendingChatsHandler(w http.ResponseWriter, r *http.Request) {
	chats, err := a.service.PendingChats(r.Context(), requestUser(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, chats)
}

func (a *API) UserChatsHandler(w http.ResponseWriter, r *http.Request) {
	chats, err := a.service.UserChats(r.Context(), requestUser(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, chats)
}

// --- Messages ---

func (a *API) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID  string `json:"chatId"`
		Content string `json:"content"`
		IV      string `json:"iv"`
		FileURL string `json:"fileUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msg, err := a.service.Send(r.Context(), chat.SendRequest{
		ChatID:   req.ChatID,
		SenderID: requestUser(r),
		Content:  req.Content,
		IV:       req.IV,
		FileURL:  req.FileURL,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": msg})
}

func (a *API) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := a.service.Messages(r.Context(), r.PathValue("chatId"), requestUser(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, messages)
}

func (a *API) EditMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewContent string `json:"newContent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msg, err := a.service.Edit(r.Context(), r.PathValue("messageId"), req.NewContent, requestUser(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, msg)
}

func (a *API) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chatId"`
	}
	// Body is optional; without a chat hint the participant check is skipped.
	_ = json.NewDecoder(r.Body).Decode(&req)

	actor := requestUser(r)
	if req.ChatID == "" {
		actor = ""
	}
	if err := a.service.Delete(r.Context(), r.PathValue("messageId"), req.ChatID, actor); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}

// --- Uploads ---

func (a *API) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		a.writeError(w, models.Upstream("read upload", err))
		return
	}

	resourceType := filestore.ResourceType(data)
	url, err := a.objects.Upload(bytes.NewReader(data), resourceType)
	if err != nil {
		a.writeError(w, models.Upstream("upload file", err))
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"success": true, "fileUrl": url})
}

// --- AI completion ---

func (a *API) AIChatHandler(w http.ResponseWriter, r *http.Request) {
	if a.assistant == nil {
		a.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "message": "AI is not configured"})
		return
	}
	var req struct {
		Messages []ai.Turn `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Messages == nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid messages format. Expected an array of messages.",
		})
		return
	}

	completion, err := a.assistant.Complete(r.Context(), req.Messages)
	if err != nil {
		a.logger.Error("AI completion failed", "error", err)
		a.writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Error generating AI response"})
		return
	}

	rendered, err := content.RenderMarkdown(completion)
	if err != nil {
		rendered = content.Escape(completion)
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": ai.Turn{Role: "assistant", Content: rendered},
	})
}

// --- Push ---

func (a *API) PushSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<10))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.notifier.Subscribe(requestUser(r), body); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// --- Helpers ---

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy to HTTP statuses.
func (a *API) writeError(w http.ResponseWriter, err error) {
	var unknown *models.UnknownParticipantsError
	switch {
	case models.IsValidation(err):
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.As(err, &unknown):
		a.writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":       "One or more users not found",
			"invalidEmails": unknown.Emails,
		})
	case errors.Is(err, models.ErrNotFound):
		a.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
	case errors.Is(err, models.ErrNotAuthorized):
		a.writeJSON(w, http.StatusForbidden, map[string]string{"message": "Not authorized"})
	case errors.Is(err, models.ErrAlreadyAccepted):
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Chat is already accepted"})
	case errors.Is(err, models.ErrDuplicateChat):
		a.writeJSON(w, http.StatusConflict, map[string]string{"message": "A private chat already exists between these users"})
	default:
		a.logger.Error("request failed", "error", err)
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
}
