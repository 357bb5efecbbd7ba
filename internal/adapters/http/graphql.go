package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/civicconnect/internal/core/domain"
	"github.com/samirrijal/civicconnect/internal/core/ports"
	"github.com/samirrijal/civicconnect/internal/core/usecases"
)

type principalCtxKey struct{}

// scopedDepartment restricts officers to their own department.
func scopedDepartment(ctx context.Context, requested string) string {
	if p, ok := ctx.Value(principalCtxKey{}).(*Principal); ok && p.Role == domain.RoleOfficer {
		return p.Department
	}
	return requested
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	issueType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Issue",
		Fields: graphql.Fields{
			"issue_id":            &graphql.Field{Type: graphql.Int},
			"detected_issue":      &graphql.Field{Type: graphql.String},
			"confidence":          &graphql.Field{Type: graphql.Float},
			"severity_score":      &graphql.Field{Type: graphql.Float},
			"description":         &graphql.Field{Type: graphql.String},
			"location_text":       &graphql.Field{Type: graphql.String},
			"location":            &graphql.Field{Type: geoPointType},
			"citizen_name":        &graphql.Field{Type: graphql.String},
			"citizen_phone":       &graphql.Field{Type: graphql.String},
			"assigned_department": &graphql.Field{Type: graphql.String},
			"exif_verified":       &graphql.Field{Type: graphql.Boolean},
			"exif_reason":         &graphql.Field{Type: graphql.String},
			"status":              &graphql.Field{Type: graphql.String},
			"escalated":           &graphql.Field{Type: graphql.Boolean},
			"created_at":          &graphql.Field{Type: graphql.DateTime},
		},
	})

	officerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Officer",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.Int},
			"name":       &graphql.Field{Type: graphql.String},
			"email":      &graphql.Field{Type: graphql.String},
			"phone":      &graphql.Field{Type: graphql.String},
			"department": &graphql.Field{Type: graphql.String},
			"status":     &graphql.Field{Type: graphql.String},
		},
	})

	countType := graphql.NewObject(graphql.ObjectConfig{
		Name: "IssueCount",
		Fields: graphql.Fields{
			"type":  &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"issues": &graphql.Field{
				Type:        graphql.NewList(issueType),
				Description: "List issues, newest first. Officers only see their department.",
				Args: graphql.FieldConfigArgument{
					"department":  &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"status":      &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"type":        &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"by_severity": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
					"limit":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Issues.List(p.Context, ports.IssueFilter{
						Department:    scopedDepartment(p.Context, p.Args["department"].(string)),
						Status:        domain.IssueStatus(p.Args["status"].(string)),
						DetectedIssue: p.Args["type"].(string),
						BySeverity:    p.Args["by_severity"].(bool),
						Limit:         p.Args["limit"].(int),
					})
				},
			},
			"issue": &graphql.Field{
				Type:        issueType,
				Description: "Get an issue by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Issues.Get(p.Context, int64(p.Args["id"].(int)))
				},
			},
			"counts": &graphql.Field{
				Type:        graphql.NewList(countType),
				Description: "Number of issues per detected type",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []map[string]interface{}
					for _, label := range append([]string{"all"}, usecases.IssueTypes...) {
						n, err := deps.Issues.CountByType(p.Context, label)
						if err != nil {
							return nil, err
						}
						out = append(out, map[string]interface{}{"type": label, "count": n})
					}
					return out, nil
				},
			},
			"officers": &graphql.Field{
				Type:        graphql.NewList(officerType),
				Description: "Officer accounts, optionally filtered by status",
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Users.List(p.Context, ports.UserFilter{
						Role:   domain.RoleOfficer,
						Status: domain.UserStatus(p.Args["status"].(string)),
					})
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		ctx := context.WithValue(c.UserContext(), principalCtxKey{}, principal(c))
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        ctx,
		})

		return c.JSON(result)
	}
}
