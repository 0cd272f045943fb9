// Package internal 實作 Ito 合作卡牌遊戲的即時服務器。
//
// 玩家各自拿到 1-100 的數字牌，不交談地依遞增順序出牌；
// 出錯時全隊失去一條生命，撐過 3 回合即獲勝。
//
// 核心組件
//
// 遊戲規則本身在 internal/game，這個套件負責把規則放到網路上：
//   - Manager：遊戲註冊表、大廳、連接註冊與廣播
//   - Handler：REST API（創建、加入、開始、下一回合、主題、統計）
//   - WebSocketHub：遊戲連接與大廳連接（gorilla/websocket）
//   - EventBus：生命週期事件的非同步佇列，送往 NATS 與 Redis
//
// 併發模型
//
// 每場遊戲有自己的互斥鎖，驗證、修改、序列化、放入發送佇列都在同一把鎖內完成，
// 因此同一場遊戲的所有觀察者看到的訊息順序一致。
//
// 鎖的順序固定為：遊戲鎖 → 註冊表鎖 → 大廳鎖。
// 持有註冊表鎖時不會去拿遊戲鎖。
//
// 觀察者
//
// 連接實作 Observer（Send 不阻塞、Close 可重複呼叫）。
// 無法接收的連接直接被移除並關閉，慢客戶端不會拖慢整場遊戲。
//
// 使用範例
//
//	manager := internal.NewManager(logger)
//	handler := internal.NewHandler(manager, logger)
//	hub := internal.NewWebSocketHub(manager, cfg.WebSocket, logger)
//
//	mux := http.NewServeMux()
//	mux.Handle("/", handler.Routes())
//	mux.HandleFunc("GET /ws/games/{game_id}", hub.ServeGameWS)
//	mux.HandleFunc("GET /ws/lobby", hub.ServeLobbyWS)
//
// 客戶端連接：
//
//	ws://localhost:8080/ws/games/{game_id}?player_id=p1
//	ws://localhost:8080/ws/lobby?client_id=c1
//
// 配置選項
//
// 配置依序來自預設值、YAML 檔（-config）、環境變數、命令行參數：
//   - -port / ITO_PORT：服務監聽端口（預設 8080）
//   - -log-level / ITO_LOG_LEVEL：日誌級別（debug/info/warn/error）
//   - NATS_URL：啟用 NATS 事件發布
//   - REDIS_ADDR：啟用 Redis 累計統計
package internal
