package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/yungbote/browserjobs-backend/internal/validator"
)

// runOps plays the role of §4.5 step 5: evaluating the script in a
// restricted global scope and awaiting its entry point's return value.
// The restricted scope here is the fixed op vocabulary itself — there is
// no general-purpose eval, no filesystem/process primitive bound, only
// the page handle and the small set of op kinds the Validator already
// checked. eval_js is the one op that runs arbitrary page-context JS;
// it is allowed (flagged by the Validator as a warning) because it
// executes inside the browser's JS sandbox, not the host process.
func runOps(ctx context.Context, ops []validator.Op) (interface{}, error) {
	vars := make(map[string]interface{})
	var result interface{}

	for i, op := range ops {
		switch op.Op {
		case validator.OpGoto:
			var args struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(op.Args, &args); err != nil {
				return nil, fmt.Errorf("goto[%d]: bad args: %w", i, err)
			}
			if err := chromedp.Run(ctx, chromedp.Navigate(args.URL)); err != nil {
				return nil, fmt.Errorf("goto[%d]: %w", i, err)
			}

		case validator.OpClick:
			var args struct {
				Selector string `json:"selector"`
			}
			if err := json.Unmarshal(op.Args, &args); err != nil {
				return nil, fmt.Errorf("click[%d]: bad args: %w", i, err)
			}
			if err := chromedp.Run(ctx, chromedp.Click(args.Selector, chromedp.ByQuery)); err != nil {
				return nil, fmt.Errorf("click[%d]: %w", i, err)
			}

		case validator.OpType:
			var args struct {
				Selector string `json:"selector"`
				Text     string `json:"text"`
			}
			if err := json.Unmarshal(op.Args, &args); err != nil {
				return nil, fmt.Errorf("type[%d]: bad args: %w", i, err)
			}
			if err := chromedp.Run(ctx, chromedp.SendKeys(args.Selector, args.Text, chromedp.ByQuery)); err != nil {
				return nil, fmt.Errorf("type[%d]: %w", i, err)
			}

		case validator.OpWait:
			var args struct {
				Selector       string  `json:"selector"`
				TimeoutSeconds float64 `json:"timeout_seconds"`
			}
			if err := json.Unmarshal(op.Args, &args); err != nil {
				return nil, fmt.Errorf("wait[%d]: bad args: %w", i, err)
			}
			wctx := ctx
			if args.TimeoutSeconds > 0 {
				var cancel context.CancelFunc
				wctx, cancel = context.WithTimeout(ctx, time.Duration(args.TimeoutSeconds*float64(time.Second)))
				defer cancel()
			}
			if err := chromedp.Run(wctx, chromedp.WaitVisible(args.Selector, chromedp.ByQuery)); err != nil {
				return nil, fmt.Errorf("wait[%d]: %w", i, err)
			}

		case validator.OpSleep:
			var args struct {
				Seconds float64 `json:"seconds"`
			}
			if err := json.Unmarshal(op.Args, &args); err != nil {
				return nil, fmt.Errorf("sleep[%d]: bad args: %w", i, err)
			}
			if err := chromedp.Run(ctx, chromedp.Sleep(time.Duration(args.Seconds*float64(time.Second)))); err != nil {
				return nil, fmt.Errorf("sleep[%d]: %w", i, err)
			}

		case validator.OpScreenshot:
			var args struct {
				FullPage bool   `json:"full_page"`
				Store    string `json:"store"`
			}
			if err := json.Unmarshal(op.Args, &args); err != nil {
				return nil, fmt.Errorf("screenshot[%d]: bad args: %w", i, err)
			}
			var buf []byte
			var err error
			if args.FullPage {
				err = chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90))
			} else {
				err = chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf))
			}
			if err != nil {
				return nil, fmt.Errorf("screenshot[%d]: %w", i, err)
			}
			if args.Store != "" {
				vars[args.Store] = base64.StdEncoding.EncodeToString(buf)
			}

		case validator.OpPDF:
			var args struct {
				Store string `json:"store"`
			}
			_ = json.Unmarshal(op.Args, &args)
			var buf []byte
			if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
				data, _, err := page.PrintToPDF().Do(ctx)
				buf = data
				return err
			})); err != nil {
				return nil, fmt.Errorf("pdf[%d]: %w", i, err)
			}
			if args.Store != "" {
				vars[args.Store] = base64.StdEncoding.EncodeToString(buf)
			}

		case validator.OpEvalJS:
			var args struct {
				Expr  string `json:"expr"`
				Store string `json:"store"`
			}
			if err := json.Unmarshal(op.Args, &args); err != nil {
				return nil, fmt.Errorf("eval_js[%d]: bad args: %w", i, err)
			}
			var res interface{}
			if err := chromedp.Run(ctx, chromedp.Evaluate(args.Expr, &res)); err != nil {
				return nil, fmt.Errorf("eval_js[%d]: %w", i, err)
			}
			if args.Store != "" {
				vars[args.Store] = res
			}

		case validator.OpReturn:
			var args struct {
				Value interface{} `json:"value"`
				Var   string      `json:"var"`
			}
			if err := json.Unmarshal(op.Args, &args); err != nil {
				return nil, fmt.Errorf("return[%d]: bad args: %w", i, err)
			}
			if args.Var != "" {
				result = vars[args.Var]
			} else {
				result = args.Value
			}

		default:
			return nil, fmt.Errorf("unknown op %q at index %d", op.Op, i)
		}
	}

	return result, nil
}
