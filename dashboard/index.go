package dashboard

import (
	"net/http"

	"github.com/healthpulse/healthpulse/logger"
)

// indexHtml is the single-page dashboard. It renders the state profiles and
// drills into county rows via the JSON API.
const indexHtml = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>HealthPulse</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; font-size: 0.85em; text-align: right; }
th { background: #f0f0f0; }
td:first-child, td:nth-child(2) { text-align: left; }
.hotspot { background: #ffe0e0; }
#status { color: #666; font-size: 0.8em; margin-top: 0.5em; }
</style>
</head>
<body>
<h1>HealthPulse county health dashboard</h1>
<div id="status"></div>
<label>State:
  <select id="state"><option value="">All states</option></select>
</label>
<div id="states"></div>
<div id="counties"></div>
<script>
function cell(v) { return v === null || v === undefined ? "" : v; }
function renderTable(el, rows, cols, rowClass) {
  if (!rows.length) { el.innerHTML = "<p>No data. Run the pipeline first.</p>"; return; }
  var html = "<table><tr>" + cols.map(function (c) { return "<th>" + c + "</th>"; }).join("") + "</tr>";
  rows.forEach(function (r) {
    html += "<tr" + (rowClass && rowClass(r) ? " class='hotspot'" : "") + ">" +
      cols.map(function (c) { return "<td>" + cell(r[c]) + "</td>"; }).join("") + "</tr>";
  });
  el.innerHTML = html + "</table>";
}
function loadStates() {
  fetch("/api/states").then(function (r) { return r.json(); }).then(function (d) {
    var cols = ["state_code", "state_name", "county_count", "total_state_population",
      "avg_diabetes", "diabetes_disparity_range", "median_diabetes", "counties_above_median_diabetes"];
    renderTable(document.getElementById("states"), d.rows, cols);
    var sel = document.getElementById("state");
    d.rows.forEach(function (r) {
      var o = document.createElement("option");
      o.value = r.state_code; o.textContent = r.state_code;
      sel.appendChild(o);
    });
  });
}
function loadCounties() {
  var state = document.getElementById("state").value;
  var url = "/api/counties" + (state ? "?state=" + state : "");
  fetch(url).then(function (r) { return r.json(); }).then(function (d) {
    var cols = ["state_code", "county_name", "total_population", "pct_diabetes", "pct_obesity",
      "pct_current_smoker", "diabetes_state_rank", "diabetes_vs_state_avg",
      "health_burden_score", "data_quality_status"];
    renderTable(document.getElementById("counties"), d.rows, cols,
      function (r) { return r.is_diabetes_hotspot || r.is_obesity_hotspot; });
  });
}
function loadStatus() {
  fetch("/api/status").then(function (r) { return r.json(); }).then(function (d) {
    document.getElementById("status").textContent =
      "mart rows: " + cell(d.tableCounts["mart_county_health"]) + ", last build: " + cell(d.lastBuiltAt);
  });
}
document.getElementById("state").addEventListener("change", loadCounties);
loadStates(); loadCounties(); loadStatus();
</script>
</body>
</html>
`

func GetHandlerIndex(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write([]byte(indexHtml)); err != nil {
			log.Error("error writing index page: ", err)
		}
	}
}
