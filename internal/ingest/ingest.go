// Package ingest подтверждает приём пачек товаров от внешнего пайплайна сбора.
// Данные в каталог пишет сам пайплайн, здесь только проверка и квитанция.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"tenderfinder/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Batch - пачка найденных товаров по одному лоту
type Batch struct {
	LotNumber string            `json:"lot_number" validate:"required"`
	LotInfo   json.RawMessage   `json:"lot_info,omitempty"`
	Products  []json.RawMessage `json:"products" validate:"min=1"`
}

type Receipt struct {
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	LotNumber  string    `json:"lot_number"`
	Count      int       `json:"count"`
	ReceiptID  uuid.UUID `json:"receipt_id"`
	ReceivedAt time.Time `json:"received_at"`
}

type Receiver struct {
	log *zap.Logger
	now func() time.Time
}

func NewReceiver(log *zap.Logger) *Receiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Receiver{log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Receiver) Accept(ctx context.Context, batch Batch) (*Receipt, error) {
	if err := validation.Struct(batch); err != nil {
		r.log.Warn("product batch rejected", zap.String("lot_number", batch.LotNumber), zap.Error(err))
		return nil, err
	}

	receipt := &Receipt{
		Status:     "success",
		Message:    "Products received",
		LotNumber:  batch.LotNumber,
		Count:      len(batch.Products),
		ReceiptID:  uuid.New(),
		ReceivedAt: r.now(),
	}
	r.log.Info("product batch received",
		zap.String("lot_number", receipt.LotNumber),
		zap.Int("count", receipt.Count),
		zap.Stringer("receipt_id", receipt.ReceiptID),
	)
	return receipt, nil
}
