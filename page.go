package main

const pageHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>evtimesel</title>
  {{if .ShareDescription}}
  <meta name="description" content="{{.ShareDescription}}">
  <meta property="og:description" content="{{.ShareDescription}}">
  {{end}}
  <style>
    body { font-family: system-ui, sans-serif; margin: 0; padding: 24px; max-width: 960px; box-sizing: border-box; }
    * { box-sizing: border-box; }
    .card { border: 1px solid #e0e0e0; border-radius: 10px; padding: 16px; margin: 16px 0; background: #fafafa; }
    .mono { font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; word-break: break-all; }
    .hint { color: #666; font-size: 0.9em; margin-top: 4px; }
    footer { margin-top: 40px; color: #666; font-size: 0.9em; text-align: center; }

    .form-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 0 32px; }
    @media (max-width: 640px) { .form-grid { grid-template-columns: 1fr; } }
    .form-section { margin-bottom: 4px; }
    .form-section-title { font-size: 0.85em; font-weight: 600; text-transform: uppercase; letter-spacing: 0.04em; color: #555; margin-bottom: 12px; padding-bottom: 6px; border-bottom: 1px solid #e0e0e0; }
    fieldset { border: 1px solid #e0e0e0; border-radius: 10px; padding: 12px 16px; margin: 0 0 16px 0; }
    fieldset[disabled] { opacity: 0.6; }
    legend { font-weight: 600; padding: 0 6px; }
    .field { margin-bottom: 14px; }
    .field label { display: block; font-weight: 500; color: #333; margin-bottom: 4px; font-size: 0.95em; }
    .field input[type="number"], .field input[type="text"] { padding: 8px 10px; font-size: 1em; border: 1px solid #ccc; border-radius: 6px; width: 100%; max-width: 220px; }
    .field input:focus { outline: none; border-color: #1976d2; box-shadow: 0 0 0 2px rgba(25,118,210,0.2); }
    .fields-row { display: flex; gap: 20px; flex-wrap: wrap; }
    .fields-row .field { flex: 1; min-width: 120px; }
    .status { margin: 8px 0; padding: 8px 10px; border-radius: 6px; }
    .status.loading { color: #555; background: #f5f5f5; }
    .status.success { color: #1b5e20; background: #e8f5e9; }
    .status.error { color: #b00020; background: #ffebee; }
    .form-actions { margin-top: 0px; padding-top: 16px; border-top: 1px solid #e0e0e0; display: flex; gap: 8px; }
    button { padding: 10px 20px; font-size: 1em; font-weight: 500; border-radius: 6px; cursor: pointer; }
    button[type="submit"] { background: #1976d2; color: #fff; border: none; }
    button[type="submit"]:hover { background: #1565c0; }
    button[type="button"] { background: #f5f5f5; border: 1px solid #ccc; }
  </style>
</head>
<body>
  <form id="builder" method="POST" action="/lookup">
    <div class="form-grid">
      <div class="form-section">
        <div class="form-section-title">Stream</div>
        <div class="fields-row">
          <div class="field"><label for="net">Network</label><input id="net" name="net" type="text" value="{{.Value "net"}}" placeholder="GE" autocomplete="off"></div>
          <div class="field"><label for="sta">Station</label><input id="sta" name="sta" type="text" value="{{.Value "sta"}}" placeholder="APE" autocomplete="off"></div>
        </div>
        <div class="fields-row">
          <div class="field"><label for="loc">Location</label><input id="loc" name="loc" type="text" value="{{.Value "loc"}}" placeholder="--" autocomplete="off"></div>
          <div class="field"><label for="cha">Channel</label><input id="cha" name="cha" type="text" value="{{.Value "cha"}}" placeholder="BH?" autocomplete="off"></div>
        </div>

        <div class="form-section-title">Time window</div>
        <div class="field">
          <label for="starttime">Start time</label>
          <input id="starttime" name="starttime" type="text" value="{{.Value "starttime"}}" placeholder="2024-01-01T00:00:00" autocomplete="off">
        </div>
        <div class="field">
          <label for="endtime">End time</label>
          <input id="endtime" name="endtime" type="text" value="{{.Value "endtime"}}" placeholder="2024-01-01T01:00:00" autocomplete="off">
        </div>
      </div>

      <div class="form-section">
        <fieldset id="event-section"{{if not .Available}} disabled{{end}}>
          <legend id="event-legend">{{.Legend}}</legend>
          <div class="field">
            <label for="eventid">Event ID</label>
            <input id="eventid" name="eventid" type="text" value="{{.Value "eventid"}}" placeholder="gfz2024abcd" autocomplete="off">
          </div>
          <div class="fields-row">
            <div class="field">
              <label for="before">Before (minutes)</label>
              <input id="before" name="before" type="number" min="0" step="any" value="{{.Value "before"}}" placeholder="0">
            </div>
            <div class="field">
              <label for="after">After (minutes)</label>
              <input id="after" name="after" type="number" min="0" step="any" value="{{.Value "after"}}" placeholder="0">
            </div>
          </div>
          <div class="hint">Start and end time follow the event origin time.</div>
          <div id="event-status" class="{{.Result.StatusClass}}">{{.Result.Status}}</div>
        </fieldset>

        <div class="form-section-title">Options</div>
        <div class="fields-row">
          <div class="field"><label for="quality">Quality</label><input id="quality" name="quality" type="text" value="{{.Value "quality"}}" placeholder="B" autocomplete="off"></div>
          <div class="field"><label for="minimumlength">Minimum length</label><input id="minimumlength" name="minimumlength" type="number" min="0" step="any" value="{{.Value "minimumlength"}}"></div>
        </div>
        <div class="fields-row">
          <div class="field"><label for="longestonly">Longest only</label><input id="longestonly" name="longestonly" type="text" value="{{.Value "longestonly"}}" placeholder="false" autocomplete="off"></div>
          <div class="field"><label for="nodata">No data code</label><input id="nodata" name="nodata" type="text" value="{{.Value "nodata"}}" placeholder="204" autocomplete="off"></div>
        </div>
      </div>
    </div>

    <div class="form-actions">
      <button type="submit">Resolve</button>
      <button type="button" id="clear">Clear</button>
    </div>
  </form>

  <div class="card">
    <div><b>Dataselect URL</b></div>
    <div id="preview" class="mono">{{.Result.DataselectURL}}</div>
  </div>

  <script>
(function() {
  var form = document.getElementById('builder');
  var statusEl = document.getElementById('event-status');
  var previewEl = document.getElementById('preview');
  var legendEl = document.getElementById('event-legend');
  var section = document.getElementById('event-section');
  var ws = null;

  function send(msg) {
    if (ws && ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify(msg));
  }

  function applyUpdate(msg) {
    if (!msg.available) {
      section.disabled = true;
      legendEl.textContent = msg.status || legendEl.textContent;
      return;
    }
    var fields = msg.fields || {};
    Object.keys(fields).forEach(function(name) {
      var el = document.getElementById(name);
      if (!el || el === document.activeElement) return;
      if (el.value !== fields[name]) el.value = fields[name];
    });
    statusEl.textContent = msg.status || '';
    statusEl.className = msg['class'] || '';
    previewEl.textContent = msg.url || '';
  }

  function connect() {
    var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    ws = new WebSocket(proto + location.host + '/ws');
    ws.onopen = function() {
      Array.prototype.forEach.call(form.elements, function(el) {
        if (el.name && el.value) send({ type: 'edit', field: el.name, value: el.value });
      });
    };
    ws.onmessage = function(e) {
      try { applyUpdate(JSON.parse(e.data)); } catch (err) {}
    };
  }

  form.addEventListener('input', function(e) {
    var el = e.target;
    if (!el.name) return;
    send({ type: 'edit', field: el.name, value: el.value });
  });
  document.getElementById('clear').addEventListener('click', function() {
    send({ type: 'clear' });
  });

  if (window.WebSocket) connect();
})();
  </script>

  <footer>evtimesel v{{.Version}}</footer>
</body>
</html>`
