package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"taskmap-backend/chain"
	"taskmap-backend/core"
	"taskmap-backend/lifecycle"
	"taskmap-backend/storage"
)

// registerListTasksTool creates a tool for listing open work
func (s *MCPServer) registerListTasksTool() {
	tool := mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks on the board, excluding finished ones"),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := s.ctrl.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list tasks: %v", err)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d tasks:\n\n", len(tasks))
		for _, t := range tasks {
			fmt.Fprintf(&b, "#%d [%s] %s (reward %s ETH)\n", t.ID, t.Status, t.Title, t.Reward)
		}
		return mcp.NewToolResultText(b.String()), nil
	})
}

// registerGetTaskTool creates a tool for getting a specific task
func (s *MCPServer) registerGetTaskTool() {
	tool := mcp.NewTool("get_task",
		mcp.WithDescription("Get details of a specific task"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of task to retrieve")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := request.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.ctrl.Get(ctx, int64(taskID))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get task: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task details:\n\n%+v", task)), nil
	})
}

// registerEscrowStatusTool reports the on-chain escrow record for a task
func (s *MCPServer) registerEscrowStatusTool() {
	tool := mcp.NewTool("escrow_status",
		mcp.WithDescription("Check whether a task's escrow holds the full reward"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of task to check")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := request.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.ctrl.Get(ctx, int64(taskID))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get task: %v", err)), nil
		}
		rec, err := s.escrow.Read(ctx, int64(taskID))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read escrow: %v", err)), nil
		}
		funded, err := s.ctrl.Funding().IsFunded(ctx, task)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to check funding: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Escrow for task #%d:\nlocked: %s ETH\nreleased: %v\ncancelled: %v\nfunded for reward %s ETH: %v",
			taskID, chain.FormatEther(rec.LockedWei), rec.Released, rec.Cancelled, task.Reward, funded)), nil
	})
}

// registerCreateTaskTool creates a tool for posting a new task
func (s *MCPServer) registerCreateTaskTool() {
	tool := mcp.NewTool("create_task",
		mcp.WithDescription("Post a new task to the board"),
		mcp.WithString("wallet", mcp.Required(), mcp.Description("Poster wallet address")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short task title")),
		mcp.WithString("reward", mcp.Required(), mcp.Description("Reward in ETH, decimal string")),
		mcp.WithString("description", mcp.Description("Longer task description")),
		mcp.WithString("location", mcp.Description("Where the task happens")),
		mcp.WithString("category", mcp.Description("Task category")),
		mcp.WithString("contact", mcp.Description("How to reach the poster")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		wallet, err := requireWallet(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		fields := storage.NewTask{
			Title:       toString(args["title"]),
			Reward:      toString(args["reward"]),
			Description: toString(args["description"]),
			Location:    toString(args["location"]),
			Category:    toString(args["category"]),
			Contact:     toString(args["contact"]),
		}

		task, err := s.ctrl.Create(ctx, wallet, fields)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create task: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Created task #%d: %s (reward %s ETH)", task.ID, task.Title, task.Reward)), nil
	})
}

// registerAcceptTaskTool creates a tool for taking an open task
func (s *MCPServer) registerAcceptTaskTool() {
	tool := mcp.NewTool("accept_task",
		mcp.WithDescription("Accept an open task as the worker"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of task to accept")),
		mcp.WithString("wallet", mcp.Required(), mcp.Description("Worker wallet address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := request.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		wallet, err := requireWallet(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.ctrl.Accept(ctx, int64(taskID), wallet)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to accept task: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task #%d accepted by %s", task.ID, task.WorkerWallet)), nil
	})
}

// registerSubmitWorkTool creates a tool for submitting finished work
func (s *MCPServer) registerSubmitWorkTool() {
	tool := mcp.NewTool("submit_work",
		mcp.WithDescription("Submit completed work for review"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of task to submit for")),
		mcp.WithString("wallet", mcp.Required(), mcp.Description("Worker wallet address")),
		mcp.WithString("url", mcp.Description("Link to the work product")),
		mcp.WithString("notes", mcp.Description("Notes for the reviewer")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		taskID, err := request.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		wallet, err := requireWallet(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.ctrl.Submit(ctx, int64(taskID), wallet, lifecycle.SubmissionRef{
			URL:   toString(args["url"]),
			Notes: toString(args["notes"]),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to submit work: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task #%d submitted for review", task.ID)), nil
	})
}

// registerRequestChangesTool creates a tool for sending work back
func (s *MCPServer) registerRequestChangesTool() {
	tool := mcp.NewTool("request_changes",
		mcp.WithDescription("Send submitted work back to the worker with review notes"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of submitted task")),
		mcp.WithString("wallet", mcp.Required(), mcp.Description("Poster wallet address")),
		mcp.WithString("notes", mcp.Description("What needs to change")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		taskID, err := request.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		wallet, err := requireWallet(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.ctrl.RequestChanges(ctx, int64(taskID), wallet, toString(args["notes"]))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to request changes: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task #%d sent back to the worker", task.ID)), nil
	})
}

// registerFundEscrowTool creates a tool for locking the reward on chain
func (s *MCPServer) registerFundEscrowTool() {
	tool := mcp.NewTool("fund_escrow",
		mcp.WithDescription("Lock the task reward in the escrow contract"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of task to fund")),
		mcp.WithString("wallet", mcp.Required(), mcp.Description("Poster wallet address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := request.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		wallet, err := requireWallet(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		receipt, err := s.ctrl.Fund(ctx, int64(taskID), wallet)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fund escrow: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Escrow for task #%d funded, tx %s", taskID, receipt.TxHash)), nil
	})
}

// registerApproveTaskTool creates a tool for approving and paying out
func (s *MCPServer) registerApproveTaskTool() {
	tool := mcp.NewTool("approve_task",
		mcp.WithDescription("Approve submitted work, releasing the escrowed reward to the worker"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of submitted task")),
		mcp.WithString("wallet", mcp.Required(), mcp.Description("Poster wallet address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := request.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		wallet, err := requireWallet(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.ctrl.Approve(ctx, int64(taskID), wallet)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to approve task: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task #%d approved and paid, payout tx %s", task.ID, task.PayoutTx)), nil
	})
}

// registerMarkPaidTool creates a recovery tool for stuck completed tasks
func (s *MCPServer) registerMarkPaidTool() {
	tool := mcp.NewTool("mark_paid",
		mcp.WithDescription("Mark a completed task as paid when the release already went through"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of completed task")),
		mcp.WithString("wallet", mcp.Required(), mcp.Description("Poster wallet address")),
		mcp.WithString("payout_tx", mcp.Description("Transaction hash of the release, if known")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		taskID, err := request.RequireInt("task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		wallet, err := requireWallet(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.ctrl.MarkPaid(ctx, int64(taskID), wallet, toString(args["payout_tx"]))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to mark task paid: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task #%d marked paid", task.ID)), nil
	})
}

// requireWallet extracts and validates the acting wallet address. Tool
// arguments are as untrusted as HTTP headers; a malformed actor must not
// reach the controller.
func requireWallet(request mcp.CallToolRequest) (string, error) {
	wallet, err := request.RequireString("wallet")
	if err != nil {
		return "", err
	}
	if err := core.ValidateWallet(wallet); err != nil {
		return "", err
	}
	return core.NormalizeWallet(wallet), nil
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
