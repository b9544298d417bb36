package adapter

import (
	"fmt"

	"github.com/akolanti/AskStan/internal/api"
	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/akolanti/AskStan/internal/rag"
)

const lockedMessage = "This conversation has reached its limit. Scan the QR code to continue."

func QRCodeURL(sessionId string) string {
	return fmt.Sprintf("/api/sessions/%s/qr", sessionId)
}

func ToSessionResponse(session chatModel.Session, turnsLimit int, withHistory bool) api.SessionResponse {
	res := api.SessionResponse{
		SessionId:  session.Id,
		TurnsLimit: turnsLimit,
		TurnCount:  session.TurnCount,
		Locked:     session.LimitReached,
		State:      string(session.State()),
		CreatedAt:  session.CreatedAt,
	}
	if withHistory {
		res.History = make([]api.TurnResponse, 0, len(session.History))
		for _, t := range session.History {
			res.History = append(res.History, api.TurnResponse{
				Role:      string(t.Role),
				Content:   t.Content,
				Timestamp: t.Timestamp,
			})
		}
	}
	return res
}

func ToLockedResponse(sessionId string) api.LockedResponse {
	return api.LockedResponse{
		Locked:  true,
		QRURL:   QRCodeURL(sessionId),
		Message: lockedMessage,
	}
}

func ToSourcesEvent(r rag.Retrieval) api.SourcesEvent {
	sources := make([]api.SourceResponse, 0, len(r.Sources))
	for _, s := range r.Sources {
		sources = append(sources, api.SourceResponse{
			DocumentIndex:  s.DocumentIndex,
			Source:         s.Source,
			Page:           s.Page,
			ChunkIndex:     s.ChunkIndex,
			Score:          s.Score,
			ContentPreview: s.Preview,
		})
	}
	return api.SourcesEvent{
		Sources:        sources,
		TotalDocuments: r.TotalDocuments,
		AverageScore:   r.AverageScore,
		Degraded:       r.Degraded,
	}
}

func ToDoneEvent(session chatModel.Session, turnsLimit int) api.DoneEvent {
	done := api.DoneEvent{
		TurnCount:  session.TurnCount,
		TurnsLimit: turnsLimit,
		Locked:     session.LimitReached,
	}
	if done.Locked {
		done.QRURL = QRCodeURL(session.Id)
	}
	return done
}
