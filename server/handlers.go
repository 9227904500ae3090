package server

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/Abraxas-365/coursekb/batch"
	"github.com/Abraxas-365/coursekb/ingest"
	"github.com/Abraxas-365/coursekb/kb"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/Abraxas-365/coursekb/storage"
	"github.com/gin-gonic/gin"
)

type askRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
}

type askResponse struct {
	ConversationID string      `json:"conversation_id,omitempty"`
	Question       string      `json:"question"`
	Answer         string      `json:"answer"`
	Sources        []kb.Source `json:"sources"`
	Usage          *llm.Usage  `json:"usage,omitempty"`
}

func toAskResponse(a *kb.Answer) askResponse {
	return askResponse{Question: a.Question, Answer: a.Answer, Sources: a.Sources, Usage: a.Usage}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "llm": s.kb.HasLLM()})
}

func bindAsk(c *gin.Context) ([]kb.AskOption, *askRequest, bool) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return nil, nil, false
	}
	if req.TopK < 0 {
		badRequest(c, "top_k must not be negative")
		return nil, nil, false
	}
	var opts []kb.AskOption
	if req.TopK > 0 {
		opts = append(opts, kb.WithK(req.TopK))
	}
	return opts, &req, true
}

func (s *Server) ask(c *gin.Context) {
	opts, req, ok := bindAsk(c)
	if !ok {
		return
	}
	answer, err := s.kb.Ask(c.Request.Context(), req.Question, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAskResponse(answer))
}

// askStream sends "token" events, then "sources" and "done"
func (s *Server) askStream(c *gin.Context) {
	opts, req, ok := bindAsk(c)
	if !ok {
		return
	}
	stream, err := s.kb.AskStream(c.Request.Context(), req.Question, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case resp, open := <-stream.Tokens:
			switch {
			case !open || resp.Done:
				c.SSEvent("sources", stream.Sources)
				c.SSEvent("done", "")
				c.Writer.Flush()
				return
			case resp.Error != nil:
				c.SSEvent("error", resp.Error.Error())
				c.Writer.Flush()
				return
			default:
				c.SSEvent("token", resp.Message.Content)
				c.Writer.Flush()
			}
		}
	}
}

func (s *Server) listDocuments(c *gin.Context) {
	docs := s.docs.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (s *Server) getDocument(c *gin.Context) {
	meta := s.docs.Get(c.Request.Context(), c.Param("id"))
	if meta == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "document not found"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) downloadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	meta := s.docs.Get(ctx, c.Param("id"))
	if meta == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "document not found"})
		return
	}

	if p, ok := s.docs.Store().(storage.Presigner); ok {
		url, err := p.PresignGet(ctx, meta.FileID, s.presignExpiry)
		if err == nil {
			c.Redirect(http.StatusFound, url.URL)
			return
		}
		s.log.Warn("presign %s failed, streaming instead: %v", meta.FileID, err)
	}

	rc, meta, err := s.docs.Open(ctx, meta.FileID)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": meta.OriginalFilename})
	c.DataFromReader(http.StatusOK, meta.Size, "application/pdf", rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (s *Server) deleteDocument(c *gin.Context) {
	res := s.ingest.Delete(c.Request.Context(), c.Param("id"))
	if !res.OK {
		c.AbortWithStatusJSON(statusOf(res.Err), errorResponse{Error: res.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": res.Message})
}

type batchResponse struct {
	*batch.State
	Progress float64 `json:"progress"`
	Summary  string  `json:"summary"`
}

func toBatchResponse(state *batch.State) batchResponse {
	return batchResponse{State: state, Progress: state.Progress(), Summary: state.Summary()}
}

func fileUpload(fh *multipart.FileHeader) ingest.Upload {
	return ingest.Upload{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func (s *Server) uploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected a multipart form: "+err.Error())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		badRequest(c, "no files in the \"files\" field")
		return
	}

	uploads := make([]ingest.Upload, len(headers))
	for i, fh := range headers {
		uploads[i] = fileUpload(fh)
	}

	state, err := s.ingest.ProcessBatch(c.Request.Context(), uploads)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toBatchResponse(state))
}

func (s *Server) getBatch(c *gin.Context) {
	state, err := s.ingest.Batch(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toBatchResponse(state))
}

type createConversationRequest struct {
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) createConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	conv, err := s.history.CreateConversation(c.Request.Context(), req.Metadata)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (s *Server) listMessages(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs, err := s.history.GetMessages(ctx, id, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": id, "messages": msgs})
}

func (s *Server) postMessage(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	opts, req, ok := bindAsk(c)
	if !ok {
		return
	}

	transcript, err := s.history.Transcript(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	answer, err := s.kb.Ask(ctx, req.Question, append(opts, kb.WithHistory(transcript))...)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.history.AddExchange(ctx, id, answer.Question, answer.Answer); err != nil {
		s.fail(c, err)
		return
	}

	resp := toAskResponse(answer)
	resp.ConversationID = id
	c.JSON(http.StatusOK, resp)
}
