package api

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kataras/golog"

	"github.com/katakuxiko/vectorbrain/internal/apperr"
	"github.com/katakuxiko/vectorbrain/internal/model"
	"github.com/katakuxiko/vectorbrain/internal/service"
)

// Handler хранит зависимости для обработчиков
type Handler struct {
	rag         *service.RAGService
	defaultTopK int
	log         *golog.Logger
}

// NewHandler конструктор
func NewHandler(rag *service.RAGService, defaultTopK int, log *golog.Logger) *Handler {
	return &Handler{rag: rag, defaultTopK: defaultTopK, log: log}
}

// Health — простая проверка
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// ListModels — проксирование к LM Studio (список моделей)
func (h *Handler) ListModels(c *fiber.Ctx) error {
	models, err := h.rag.ListModels(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(models)
}

// Upload — загрузка документа: извлечение текста, чанки, embeddings, сохранение.
func (h *Handler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, apperr.New(apperr.InvalidRequest, "file is required (form field: file)"))
	}
	f, err := file.Open()
	if err != nil {
		return h.fail(c, apperr.Wrap(apperr.InvalidRequest, err, "cannot read upload"))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return h.fail(c, apperr.Wrap(apperr.InvalidRequest, err, "cannot read upload"))
	}

	res, err := h.rag.Ingest(c.UserContext(), file.Filename, data)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(model.UploadResponse{
		Message: "uploaded " + file.Filename,
		ID:      res.IDs[0],
		IDs:     res.IDs,
		Chunks:  len(res.IDs),
	})
}

// Query — поиск ближайших фрагментов без LLM.
func (h *Handler) Query(c *fiber.Ctx) error {
	req, topK, err := h.parseQuery(c)
	if err != nil {
		return h.fail(c, err)
	}
	chunks, err := h.rag.Retrieve(c.UserContext(), req.Prompt, topK)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(model.QueryResponse{Results: model.Contents(chunks)})
}

// Ask — RAG: поиск + LLM
func (h *Handler) Ask(c *fiber.Ctx) error {
	req, topK, err := h.parseQuery(c)
	if err != nil {
		return h.fail(c, err)
	}
	answer, chunks, err := h.rag.Ask(c.UserContext(), req.Prompt, topK)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(model.AskResponse{Answer: answer, Results: model.Contents(chunks)})
}

func (h *Handler) parseQuery(c *fiber.Ctx) (*model.QueryRequest, int, error) {
	var req model.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, 0, apperr.New(apperr.InvalidRequest, `invalid request, expected JSON: {"prompt":"...","top_k":5}`)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, 0, apperr.New(apperr.InvalidRequest, "prompt is required")
	}
	topK := h.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK <= 0 {
		return nil, 0, apperr.New(apperr.InvalidRequest, "top_k must be at least 1, got %d", topK)
	}
	return &req, topK, nil
}

// CreateVector stores a (content, embedding) pair as is.
func (h *Handler) CreateVector(c *fiber.Ctx) error {
	var req model.VectorCreate
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperr.New(apperr.InvalidRequest, `invalid request, expected JSON: {"content":"...","embedding":[...]}`))
	}
	if strings.TrimSpace(req.Content) == "" || len(req.Embedding) == 0 {
		return h.fail(c, apperr.New(apperr.InvalidRequest, "content and embedding are required"))
	}

	id, err := h.rag.AddVector(c.UserContext(), req.Content, req.Embedding)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(model.VectorRead{ID: id, Content: req.Content})
}

func (h *Handler) CountVectors(c *fiber.Ctx) error {
	n, err := h.rag.Count(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(model.CountResponse{Count: n})
}

// fail пишет ошибку в формате {"error","message","chunk"}.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status, body := errorResponse(err)
	if status >= fiber.StatusInternalServerError {
		h.log.Errorf("[%v] %s %s: %v", c.Locals("requestid"), c.Method(), c.Path(), err)
	} else {
		h.log.Debugf("[%v] %s %s: %v", c.Locals("requestid"), c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(body)
}

func errorResponse(err error) (int, model.ErrorResponse) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	body := model.ErrorResponse{Error: string(kind), Message: apperr.Message(err)}
	if kind == "" {
		body.Error = "Internal"
	}
	if idx, ok := apperr.ChunkIndex(err); ok {
		body.Chunk = &idx
	}

	// не раскрываем детали инфраструктуры
	switch kind {
	case apperr.ProviderUnavailable:
		body.Message = "embedding or language model provider is unavailable"
	case apperr.StorageUnavailable:
		body.Message = "vector store is unavailable"
	default:
		if status >= fiber.StatusInternalServerError {
			body.Message = "internal error"
		}
	}
	return status, body
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.UnsupportedFormat, apperr.InvalidRequest:
		return fiber.StatusBadRequest
	case apperr.ExtractionFailed:
		return fiber.StatusUnprocessableEntity
	case apperr.ProviderUnavailable:
		return fiber.StatusBadGateway
	case apperr.StorageUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders framework errors (unknown route, body too large) in the same shape.
func ErrorHandler(log *golog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			kind := string(apperr.InvalidRequest)
			if fe.Code >= fiber.StatusInternalServerError {
				kind = "Internal"
			}
			return c.Status(fe.Code).JSON(model.ErrorResponse{Error: kind, Message: fe.Message})
		}
		log.Errorf("[%v] %s %s: %v", c.Locals("requestid"), c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Error: "Internal", Message: "internal error"})
	}
}
