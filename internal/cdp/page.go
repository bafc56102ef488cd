package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vincentbai/urltrail/internal/observer"
)

// Page adapts a DevTools session to observer.Page.
type Page struct {
	conn        *Conn
	mainFrameID string
	signals     chan observer.Signal
}

type frame struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId"`
	URL         string `json:"url"`
	URLFragment string `json:"urlFragment"`
}

type frameTreeResult struct {
	FrameTree struct {
		Frame frame `json:"frame"`
	} `json:"frameTree"`
}

type frameNavigatedParams struct {
	Frame frame `json:"frame"`
}

type navigatedWithinDocumentParams struct {
	FrameID        string `json:"frameId"`
	URL            string `json:"url"`
	NavigationType string `json:"navigationType"`
}

type evaluateResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

// OpenPage enables page events on conn and starts translating them into signals.
func OpenPage(ctx context.Context, conn *Conn) (*Page, error) {
	if err := conn.Call(ctx, "Page.enable", nil, nil); err != nil {
		return nil, fmt.Errorf("failed to enable page events: %w", err)
	}
	var tree frameTreeResult
	if err := conn.Call(ctx, "Page.getFrameTree", nil, &tree); err != nil {
		return nil, fmt.Errorf("failed to read frame tree: %w", err)
	}

	p := &Page{
		conn:        conn,
		mainFrameID: tree.FrameTree.Frame.ID,
		signals:     make(chan observer.Signal, 16),
	}
	go p.translate()
	return p, nil
}

func (p *Page) Signals() <-chan observer.Signal {
	return p.signals
}

// URL evaluates location.href in the page.
func (p *Page) URL(ctx context.Context) (string, error) {
	var href string
	if err := p.evaluate(ctx, "location.href", &href); err != nil {
		return "", err
	}
	return href, nil
}

func (p *Page) Close() error {
	return p.conn.Close()
}

func (p *Page) evaluate(ctx context.Context, expression string, value interface{}) error {
	params := map[string]interface{}{
		"expression":    expression,
		"returnByValue": true,
	}
	var result evaluateResult
	if err := p.conn.Call(ctx, "Runtime.evaluate", params, &result); err != nil {
		return fmt.Errorf("failed to evaluate %q: %w", expression, err)
	}
	if result.ExceptionDetails != nil {
		return fmt.Errorf("failed to evaluate %q: %s", expression, result.ExceptionDetails.Text)
	}
	if value == nil || len(result.Result.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Result.Value, value); err != nil {
		return fmt.Errorf("unexpected %s result for %q: %w", result.Result.Type, expression, err)
	}
	return nil
}

func (p *Page) translate() {
	defer close(p.signals)
	for event := range p.conn.Events() {
		switch event.Method {
		case "Page.frameNavigated":
			var params frameNavigatedParams
			if json.Unmarshal(event.Params, &params) != nil || params.Frame.ParentID != "" {
				continue
			}
			p.mainFrameID = params.Frame.ID
			p.emit(observer.Signal{Channel: observer.ChannelLoad, URL: params.Frame.URL + params.Frame.URLFragment})
		case "Page.navigatedWithinDocument":
			var params navigatedWithinDocumentParams
			if json.Unmarshal(event.Params, &params) != nil || params.FrameID != p.mainFrameID {
				continue
			}
			p.emit(observer.Signal{Channel: channelFor(params.NavigationType), URL: params.URL})
		case "Inspector.detached":
			_ = p.conn.Close()
			return
		}
	}
}

func (p *Page) emit(sig observer.Signal) {
	select {
	case p.signals <- sig:
	case <-p.conn.Done():
	}
}

func channelFor(navigationType string) observer.Channel {
	switch navigationType {
	case "fragment":
		return observer.ChannelHashChange
	case "historyApi":
		return observer.ChannelHistoryAPI
	default:
		return observer.ChannelPopState
	}
}
