package view

// pageStyle is shared by every page.
const pageStyle = `
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(620px, 94vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
		}
		h1 { font-size: 1.5rem; margin-bottom: 6px; }
		p { color: var(--muted); margin-top: 0; }
		a { color: var(--accent); }
		.link {
			margin: 24px 0;
			padding: 18px;
			border-radius: 14px;
			background: rgba(125, 211, 252, 0.07);
			border: 1px solid rgba(125, 211, 252, 0.25);
			word-break: break-all;
		}
		.actions { display: flex; gap: 12px; flex-wrap: wrap; margin-top: 24px; }
		.button {
			display: inline-flex;
			align-items: center;
			justify-content: center;
			padding: 0 24px;
			height: 44px;
			border: none;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-size: 1rem;
			font-weight: 600;
			text-decoration: none;
			cursor: pointer;
		}
		.button:hover { opacity: 0.92; }
		label { display: block; margin: 14px 0 6px; font-size: 0.85rem; color: var(--muted); }
		input, textarea {
			width: 100%;
			padding: 10px 12px;
			border-radius: 10px;
			border: 1px solid var(--border);
			background: rgba(0, 0, 0, 0.25);
			color: var(--text);
			font: inherit;
		}
		textarea { min-height: 140px; resize: vertical; }
		.hint { font-size: 0.8rem; color: var(--muted); margin-top: 4px; }
	</style>`
