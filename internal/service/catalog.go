package service

import "fleetwatch/internal/model"

var workflowTemplates = []model.WorkflowTemplate{
	{
		ID:          "deploy-discord-bot",
		Name:        "Deploy Discord bot",
		Description: "git pull, npm install, pm2 restart",
		Category:    "deployment",
		Steps: []model.WorkflowStep{
			{Name: "Git Pull", Command: "git pull origin main", Directory: "/home/pi/discord-bot"},
			{Name: "Install Dependencies", Command: "npm install", Directory: "/home/pi/discord-bot"},
			{Name: "Restart PM2", Command: "pm2 restart discord-bot", Directory: "/home/pi/discord-bot"},
		},
	},
	{
		ID:          "deploy-website",
		Name:        "Deploy website",
		Description: "git pull, npm install, build, pm2 restart",
		Category:    "deployment",
		Steps: []model.WorkflowStep{
			{Name: "Git Pull", Command: "git pull origin main", Directory: "/home/pi/website"},
			{Name: "Install Dependencies", Command: "npm install", Directory: "/home/pi/website"},
			{Name: "Build", Command: "npm run build", Directory: "/home/pi/website", Timeout: 300},
			{Name: "Restart Server", Command: "pm2 restart website", Directory: "/home/pi/website"},
		},
	},
	{
		ID:          "system-update",
		Name:        "System update",
		Description: "apt update, apt upgrade, reboot",
		Category:    "maintenance",
		Steps: []model.WorkflowStep{
			{Name: "Update Package List", Command: "sudo apt update", Directory: "/home/pi", Timeout: 120},
			{Name: "Upgrade Packages", Command: "sudo apt upgrade -y", Directory: "/home/pi", Timeout: 900},
			{Name: "Reboot", Command: "sudo reboot", Directory: "/home/pi", ContinueOnError: true},
		},
	},
	{
		ID:          "backup-mongodb",
		Name:        "Backup MongoDB",
		Description: "Dump and compress the local MongoDB",
		Category:    "backup",
		Steps: []model.WorkflowStep{
			{Name: "Create Backup Dir", Command: "mkdir -p ~/backups", Directory: "/home/pi"},
			{Name: "Dump Database", Command: "mongodump --out ~/backups/mongodb-$(date +%Y%m%d)", Directory: "/home/pi", Timeout: 600},
			{Name: "Compress Backup", Command: "tar -czf ~/backups/mongodb-$(date +%Y%m%d).tar.gz ~/backups/mongodb-$(date +%Y%m%d)", Directory: "/home/pi", Timeout: 600},
		},
	},
	{
		ID:          "restart-all-bots",
		Name:        "Restart all bots",
		Description: "Restart every PM2 process",
		Category:    "maintenance",
		Steps: []model.WorkflowStep{
			{Name: "Restart All PM2", Command: "pm2 restart all", Directory: "/home/pi"},
			{Name: "Save PM2 List", Command: "pm2 save", Directory: "/home/pi"},
		},
	},
	{
		ID:          "clean-disk",
		Name:        "Clean disk space",
		Description: "Drop package caches and old journal entries",
		Category:    "maintenance",
		Steps: []model.WorkflowStep{
			{Name: "Clean APT Cache", Command: "sudo apt clean", Directory: "/home/pi"},
			{Name: "Remove Old Kernels", Command: "sudo apt autoremove -y", Directory: "/home/pi", Timeout: 300},
			{Name: "Clear Logs", Command: "sudo journalctl --vacuum-time=7d", Directory: "/home/pi"},
		},
	},
}

var quickActionPresets = []model.QuickAction{
	{Name: "Git Pull", Description: "Fetch the latest changes", Icon: "git", Category: "git", Command: "git pull origin main"},
	{Name: "Git Status", Description: "Show the working tree status", Icon: "git", Category: "git", Command: "git status"},
	{Name: "Git Log", Description: "Show the last commits", Icon: "git", Category: "git", Command: "git log --oneline -10"},
	{Name: "NPM Install", Description: "Install dependencies", Icon: "npm", Category: "npm", Command: "npm install"},
	{Name: "NPM Update", Description: "Update packages", Icon: "npm", Category: "npm", Command: "npm update"},
	{Name: "NPM Audit Fix", Description: "Fix known vulnerabilities", Icon: "npm", Category: "npm", Command: "npm audit fix"},
	{Name: "PM2 List", Description: "List PM2 processes", Icon: "pm2", Category: "pm2", Command: "pm2 list"},
	{Name: "PM2 Restart All", Description: "Restart every process", Icon: "pm2", Category: "pm2", Command: "pm2 restart all"},
	{Name: "PM2 Stop All", Description: "Stop every process", Icon: "pm2", Category: "pm2", Command: "pm2 stop all", RequiresConfirmation: true},
	{Name: "PM2 Logs", Description: "Show recent PM2 logs", Icon: "pm2", Category: "pm2", Command: "pm2 logs --lines 50 --nostream"},
	{Name: "Docker PS", Description: "List containers", Icon: "docker", Category: "docker", Command: "docker ps"},
	{Name: "Docker Restart", Description: "Restart running containers", Icon: "docker", Category: "docker", Command: "docker restart $(docker ps -q)"},
	{Name: "Docker Prune", Description: "Remove unused Docker data", Icon: "docker", Category: "docker", Command: "docker system prune -f", RequiresConfirmation: true},
	{Name: "Disk Usage", Description: "Show disk space", Icon: "disk", Category: "system", Command: "df -h"},
	{Name: "Memory Usage", Description: "Show memory usage", Icon: "memory", Category: "system", Command: "free -h"},
	{Name: "Top Processes", Description: "Show the hungriest processes", Icon: "cpu", Category: "system", Command: "ps aux --sort=-%mem | head -10"},
	{Name: "Uptime", Description: "Show uptime", Icon: "clock", Category: "system", Command: "uptime"},
	{Name: "Reboot", Description: "Reboot the host", Icon: "power", Category: "system", Command: "sudo reboot", RequiresConfirmation: true},
}
