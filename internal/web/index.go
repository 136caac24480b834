package web

const indexHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Slack ハドル通知</title>
    <script src="https://unpkg.com/htmx.org@1.9.10"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #f5f5f5;
            color: #333;
            padding: 20px;
        }
        h1 { font-size: 1.6rem; margin-bottom: 20px; }
        .dashboard { display: flex; gap: 20px; flex-wrap: wrap; }
        .box {
            flex: 1;
            min-width: 300px;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 24px;
        }
        .box h2 {
            font-size: 1.2rem;
            margin-bottom: 16px;
            border-bottom: 2px solid #4a154b;
            padding-bottom: 8px;
        }
        .setting { display: flex; justify-content: space-between; align-items: center; padding: 10px 0; border-bottom: 1px solid #eee; }
        button {
            margin-top: 16px;
            background: #4a154b;
            color: white;
            border: none;
            border-radius: 4px;
            padding: 8px 16px;
            cursor: pointer;
        }
        .status { margin-top: 12px; font-size: 0.9rem; color: #7f8c8d; min-height: 1.2em; }
        .speaker-item {
            display: flex;
            justify-content: space-between;
            padding: 10px 8px;
            border-bottom: 1px solid #eee;
            background: linear-gradient(90deg, rgba(74,21,75,0.12) var(--bar-width), transparent var(--bar-width));
        }
        .total { margin-top: 12px; font-weight: bold; }
        #live li { list-style: none; padding: 4px 0; font-size: 0.9rem; }
    </style>
</head>
<body>
    <h1>Slack ハドル 🎤</h1>
    <div class="dashboard">
        <div class="box">
            <h2>設定</h2>
            <label class="setting">通知を有効にする <input type="checkbox" id="enabled"></label>
            <label class="setting">通知音 <input type="checkbox" id="soundEnabled"></label>
            <label class="setting">参加者名を表示 <input type="checkbox" id="showParticipantName"></label>
            <label class="setting">通知間隔
                <select id="notificationCooldown">
                    <option value="1000">1秒</option>
                    <option value="3000">3秒</option>
                    <option value="5000">5秒</option>
                    <option value="10000">10秒</option>
                </select>
            </label>
            <button id="test">テスト通知</button>
            <div class="status" id="status"></div>
        </div>
        <div class="box">
            <h2>今日の発言者</h2>
            <div hx-get="/api/summary?period=day" hx-trigger="load, every 30s">
                <div class="loading">Loading...</div>
            </div>
        </div>
        <div class="box">
            <h2>ライブ</h2>
            <ul id="live"></ul>
        </div>
    </div>
    <script>
        const keys = ["enabled", "soundEnabled", "showParticipantName"];
        const status = (msg) => {
            const el = document.getElementById("status");
            el.textContent = msg;
            setTimeout(() => { el.textContent = ""; }, 2000);
        };
        const render = (s) => {
            keys.forEach((k) => { document.getElementById(k).checked = s[k]; });
            document.getElementById("notificationCooldown").value = String(s.notificationCooldown);
        };
        const save = async () => {
            const body = { notificationCooldown: parseInt(document.getElementById("notificationCooldown").value, 10) };
            keys.forEach((k) => { body[k] = document.getElementById(k).checked; });
            const res = await fetch("/api/settings", { method: "PUT", body: JSON.stringify(body) });
            status(res.ok ? "設定を保存しました" : "保存に失敗しました");
        };
        fetch("/api/settings").then((r) => r.json()).then(render);
        keys.concat(["notificationCooldown"]).forEach((k) => {
            document.getElementById(k).addEventListener("change", save);
        });
        document.getElementById("test").addEventListener("click", async () => {
            const res = await fetch("/api/notifications/test", { method: "POST" });
            status(res.ok ? "テスト通知を送信しました" : "テスト通知に失敗しました");
        });
        const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/api/stream");
        ws.onmessage = (ev) => {
            const msg = JSON.parse(ev.data);
            if (msg.type === "settings_updated") {
                render(msg.data);
            } else if (msg.type === "voice_activity_detected") {
                const li = document.createElement("li");
                const name = msg.data.participantName || "誰か";
                li.textContent = new Date(msg.data.timestamp).toLocaleTimeString() + " " + name + "が話し始めました";
                document.getElementById("live").prepend(li);
            }
        };
    </script>
</body>
</html>`
