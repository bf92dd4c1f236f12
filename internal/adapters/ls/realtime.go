package ls

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/ports"
)

type jifBody struct {
	Jangubun string `json:"jangubun"`
	Jstatus  string `json:"jstatus"`
}

type s3Body struct {
	Symbol string `json:"shcode"`
	Price  string `json:"price"`
	Volume string `json:"cvolume"`
	Time   string `json:"chetime"` // HHMMSS
}

// StreamRealtime opens the venue WebSocket, subscribes to the JIF
// market-state channel and a per-symbol S3_ trade channel for each symbol,
// and yields ticks on the returned channel until ctx is cancelled or the
// connection drops (spec §4.7). Callers reconnect by calling it again
// (restartable, caller-driven per spec §9).
func (c *Client) StreamRealtime(ctx context.Context, symbols []string) (<-chan ports.Tick, error) {
	tok, err := c.tokens.GetValid(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream realtime: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsBase, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	if err := subscribeJIF(conn, tok.AccessToken); err != nil {
		conn.Close()
		return nil, err
	}
	for _, sym := range symbols {
		if err := subscribeS3(conn, tok.AccessToken, sym); err != nil {
			conn.Close()
			return nil, err
		}
		time.Sleep(domain.SubscribePacing)
	}

	out := make(chan ports.Tick)
	go c.recvLoop(ctx, conn, out)
	return out, nil
}

func subscribeJIF(conn *websocket.Conn, token string) error {
	frame := map[string]any{
		"header": map[string]string{"token": token, "tr_type": "3"},
		"body":   map[string]string{"tr_cd": "JIF", "tr_key": ""},
	}
	return conn.WriteJSON(frame)
}

func subscribeS3(conn *websocket.Conn, token, symbol string) error {
	frame := map[string]any{
		"header": map[string]string{"token": token, "tr_type": "1"},
		"body": map[string]any{
			"input": map[string]string{"tr_id": "S3_", "tr_key": symbol},
		},
	}
	return conn.WriteJSON(frame)
}

func (c *Client) recvLoop(ctx context.Context, conn *websocket.Conn, out chan<- ports.Tick) {
	defer close(out)
	defer conn.Close()

	kst := time.FixedZone("KST", 9*60*60)

	for {
		conn.SetReadDeadline(time.Now().Add(domain.WSRecvTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if pingErr := conn.WriteMessage(websocket.PingMessage, nil); pingErr != nil {
				slog.Warn("websocket ping failed, tearing down for reconnect", "err", pingErr)
				return
			}
			continue
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue // non-JSON frame, skip
		}

		switch frame.Header.TrCd {
		case "JIF":
			var body jifBody
			if err := json.Unmarshal(frame.Body, &body); err != nil {
				continue
			}
			jangubun, _ := strconv.Atoi(body.Jangubun)
			c.marketState.Update(jangubun, body.Jstatus)
		case "S3_":
			var body s3Body
			if err := json.Unmarshal(frame.Body, &body); err != nil {
				continue
			}
			price, _ := strconv.ParseFloat(body.Price, 64)
			vol, _ := strconv.ParseFloat(body.Volume, 64)
			ts, err := time.ParseInLocation("20060102150405", time.Now().In(kst).Format("20060102")+body.Time, kst)
			if err != nil {
				continue
			}
			select {
			case out <- ports.Tick{Symbol: body.Symbol, Price: price, Volume: vol, Timestamp: ts}:
			case <-ctx.Done():
				return
			}
		}
	}
}
