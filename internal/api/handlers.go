package api

import (
	"net/http"
	"strconv"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/gin-gonic/gin"
)

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, common.ValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// boolQuery parses an optional boolean query parameter.
func boolQuery(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		respondBadRequest(c, common.ValidationError(name, "must be a boolean"))
		return false, false
	}
	return v, true
}

func (s *Server) categorize(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	force, ok := boolQuery(c, "force_llm")
	if !ok {
		return
	}

	suggestion, err := s.engine.CategorizeByID(c.Request.Context(), id, force)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

func (s *Server) categorizeBatch(c *gin.Context) {
	var req categorizeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	txns, err := s.engine.Transactions(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}

	suggestions, err := s.engine.CategorizeBatch(c.Request.Context(), txns, req.RulesOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CategorizeBatchResponse{
		Suggestions: suggestions,
		Missing:     engine.MissingIDs(req.IDs, txns),
	})
}

func (s *Server) apply(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	learn := true
	if req.Learn != nil {
		learn = *req.Learn
	}

	result, err := s.engine.ApplyFeedback(c.Request.Context(), engine.FeedbackRequest{
		TransactionID:  id,
		Classification: model.Classification(req.Classification),
		CategoryID:     req.CategoryID,
		Learn:          learn,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFeedbackResponse(result))
}

func (s *Server) applyBulk(c *gin.Context) {
	var req bulkApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := s.engine.BulkApply(c.Request.Context(), req.IDs, model.Classification(req.Classification), req.CategoryID, req.Learn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) reset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	repredict, ok := boolQuery(c, "repredict")
	if !ok {
		return
	}

	result, err := s.engine.Reset(c.Request.Context(), id, repredict)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) similar(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	include, ok := boolQuery(c, "include_categorized")
	if !ok {
		return
	}

	txns, err := s.engine.FindSimilar(c.Request.Context(), id, include)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":        len(txns),
		"transactions": newTransactionResponses(txns),
	})
}

func (s *Server) train(c *gin.Context) {
	var req trainRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}

	result, err := s.engine.Train(c.Request.Context(), req.MinSamples)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (s *Server) predict(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	prediction, err := s.engine.Predict(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}

func (s *Server) autoCategorize(c *gin.Context) {
	var req autoCategorizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}

	result, err := s.engine.AutoCategorize(c.Request.Context(), req.MinConfidence)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) modelInfo(c *gin.Context) {
	info, ok := s.engine.ModelInfo()
	if !ok {
		respondError(c, common.ErrNoModel)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) listRules(c *gin.Context) {
	rules, err := s.engine.Rules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]RuleResponse, len(rules))
	for i, rule := range rules {
		out[i] = newRuleResponse(rule)
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

func (s *Server) ruleStats(c *gin.Context) {
	stats, err := s.engine.RuleStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.engine.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]CategoryResponse, len(categories))
	for i, cat := range categories {
		out[i] = CategoryResponse{
			ID:          cat.ID,
			Name:        cat.Name,
			Description: cat.Description,
			Keywords:    cat.Keywords,
			IsIncome:    cat.IsIncome,
		}
	}
	c.JSON(http.StatusOK, gin.H{"categories": out})
}
