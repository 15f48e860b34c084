// File path: internal/api/chat_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coastalgraphics/orderdesk/internal/common"
	"github.com/coastalgraphics/orderdesk/internal/oms"
	"github.com/coastalgraphics/orderdesk/internal/rag"
	"github.com/coastalgraphics/orderdesk/internal/router"
	"github.com/coastalgraphics/orderdesk/internal/session"
)

const maxMessageLength = 2000

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	ctx := r.Context()
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("api: chat decode failed", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message required"))
		return
	}
	if len(message) > maxMessageLength {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message exceeds %d characters", maxMessageLength))
		return
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	logger.Info("api: chat request received", "session", sess.ID, "message_length", len(message))

	var result router.Result
	if rag.IsAggregateFollowUp(message) && len(sess.Context.ShownOrders) > 0 {
		// Arithmetic over what the user was just shown; no retrieval.
		result = router.Result{
			Strategy:   router.StrategyAPI,
			Rule:       "aggregate-followup",
			Orders:     sess.Context.ShownOrders,
			Confidence: router.ConfidenceHigh,
		}
	} else {
		result = s.queries.Route(ctx, message, s.requestClock())
	}
	if result.Strategy == router.StrategyError {
		// The cause is already logged by the router; the client gets a
		// stable, non-leaky message.
		writeError(w, http.StatusInternalServerError, fmt.Errorf("order lookup is temporarily unavailable"))
		return
	}

	var answerText string
	var generated bool
	if result.NotFoundJob != "" {
		answerText = rag.NotFoundAnswer(result.NotFoundJob)
	} else {
		answer, err := s.generator.Generate(ctx, message, result.Orders, sess)
		if err != nil {
			logger.Error("api: answer generation failed", "session", sess.ID, "error", err)
			answerText = rag.FallbackAnswer(message, result.Orders)
		} else {
			answerText = answer.Message
			generated = answer.Generated
		}
	}

	now := time.Now().UTC()
	s.sessions.AppendMessage(sess.ID, session.Message{Role: "user", Content: message, Timestamp: now})
	s.sessions.AppendMessage(sess.ID, session.Message{Role: "assistant", Content: answerText, Timestamp: now})
	s.sessions.UpdateContext(sess.ID, nextContext(sess.Context, message, result))

	analytics := chatAnalytics{
		TotalResults:   len(result.Orders),
		DataSource:     string(result.DataFreshness),
		ProcessingTime: result.ProcessingTime.Round(time.Millisecond).String(),
		Confidence:     result.Confidence,
		SearchStrategy: string(result.Strategy),
	}
	if len(result.VectorMatches) > 0 {
		analytics.TopScore = result.VectorMatches[0].Score
	}
	orders := result.Orders
	if orders == nil {
		orders = []oms.Order{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Success:   true,
		SessionID: sess.ID,
		Message:   answerText,
		Orders:    orders,
		Analytics: analytics,
		Metadata: chatMetadata{
			QueryProcessed: message,
			Timestamp:      now,
			Strategy:       string(result.Strategy),
			Generated:      generated,
		},
	})
}

// nextContext computes the session context after a query. Aggregate
// follow-ups keep the previous result set so chained follow-ups still
// resolve; real queries replace it.
func nextContext(prev session.Context, message string, result router.Result) session.Context {
	if result.Rule == "aggregate-followup" {
		next := prev
		next.LastQuery = message
		return next
	}
	next := session.Context{
		LastQuery:     message,
		ShownOrders:   result.Orders,
		CurrentFilter: result.Rule,
	}
	if len(result.Orders) == 1 {
		next.FocusedJob = result.Orders[0].JobNumber
	}
	if company := sharedCompany(result.Orders); company != "" {
		next.FocusedCustomer = company
	}
	return next
}

func sharedCompany(orders []oms.Order) string {
	if len(orders) == 0 {
		return ""
	}
	company := orders[0].Customer.Company
	for _, order := range orders[1:] {
		if !strings.EqualFold(order.Customer.Company, company) {
			return ""
		}
	}
	return company
}
