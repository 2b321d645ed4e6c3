package browser

// hookBody installs the page-side collectors. Events are buffered in
// window.__breakEvents and drained by the poll loop.
const hookBody = `
	const w = window;
	if (w.__breakHooked) return true;
	w.__breakHooked = true;
	w.__breakEvents = w.__breakEvents || [];
	const push = (ev) => { try { ev.ts = Date.now(); w.__breakEvents.push(ev); } catch (e) {} };

	const wrap = (fn) => function (...args) {
		push({ type: 'hook' });
		return fn.apply(this, args);
	};
	let current = (typeof w.Break === 'function') ? wrap(w.Break) : w.Break;
	try {
		Object.defineProperty(w, 'Break', {
			configurable: true,
			enumerable: true,
			get() { return current; },
			set(v) { current = (typeof v === 'function') ? wrap(v) : v; },
		});
	} catch (e) {}

	document.addEventListener('click', (ev) => {
		const a = ev.target && ev.target.closest ? ev.target.closest('a') : null;
		if (!a) return;
		push({ type: 'anchor', onclick: a.getAttribute('onclick') || '' });
	}, true);
	return true;
`

// newDocumentScript runs before any page script on every navigation.
const newDocumentScript = `(() => {` + hookBody + `})();`

// installFn installs the collectors into the already loaded document.
const installFn = `() => {` + hookBody + `}`

// pollFn drains buffered events and snapshots the break tag.
const pollFn = `(id) => {
	const w = window;
	const events = Array.isArray(w.__breakEvents) ? w.__breakEvents : [];
	w.__breakEvents = [];
	const el = document.getElementById(id);
	let snap = null;
	if (el) {
		const cs = getComputedStyle(el);
		snap = {
			className: typeof el.className === 'string' ? el.className : '',
			visibility: cs.visibility,
			display: cs.display,
			style: el.getAttribute('style') || '',
			hasLayout: el.offsetParent !== null,
		};
	}
	return { events, el: snap, ts: Date.now() };
}`
