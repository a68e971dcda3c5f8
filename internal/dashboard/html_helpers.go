package dashboard

import (
	"fmt"
	"strings"
)

// htmlHead returns the common HTML head section with proper meta tags.
func htmlHead(title string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<meta name="description" content="Cross-system event log run report">
	<title>%s - ALM Event Log</title>
	%s
</head>`, escapeHTML(title), commonCSS())
}

// commonCSS returns the report styles.
func commonCSS() string {
	return `<style>
		:root {
			--bg-primary: #f5f5f5;
			--bg-secondary: white;
			--text-primary: #333;
			--text-secondary: #666;
			--border-color: #e0e0e0;
			--shadow: rgba(0,0,0,0.1);
		}
		body { font-family: system-ui, -apple-system, sans-serif; margin: 0; padding: 20px; background: var(--bg-primary); color: var(--text-primary); }
		.container { max-width: 1200px; margin: 0 auto; }
		.card { background: var(--bg-secondary); padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px var(--shadow); margin-bottom: 20px; }
		.stats-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 20px; margin-bottom: 20px; }
		.stat { font-size: 28px; font-weight: 600; }
		.stat-label { color: var(--text-secondary); font-size: 14px; }
		table { width: 100%; border-collapse: collapse; font-size: 14px; }
		th, td { text-align: left; padding: 8px; border-bottom: 1px solid var(--border-color); vertical-align: top; }
		th { color: var(--text-secondary); font-weight: 500; }
		.mono { font-family: ui-monospace, monospace; }
		.status { padding: 2px 8px; border-radius: 4px; font-size: 12px; font-weight: 500; }
		.status-success { background: #d4edda; color: #155724; }
		.status-failed { background: #f8d7da; color: #721c24; }
		.status-running { background: #d1ecf1; color: #0c5460; }
		.status-pending { background: #fff3cd; color: #856404; }
		.status-canceled { background: #e2e3e5; color: #383d41; }
		.link-undefined { color: #721c24; }
		.empty { text-align: center; padding: 40px; color: var(--text-secondary); }
	</style>`
}

// htmlFooter closes the document.
func htmlFooter() string {
	return `
	</div>
</body>
</html>`
}

// escapeHTML escapes special HTML characters to prevent XSS.
func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}

// statusBadge renders a pipeline status; unknown statuses get no color.
func statusBadge(status string) string {
	return fmt.Sprintf(`<span class="status status-%s">%s</span>`,
		escapeHTML(status), escapeHTML(strings.ToUpper(status)))
}
