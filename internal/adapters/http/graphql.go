package http

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema over saved drawings.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Point",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	strokeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stroke",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.String},
			"owner":  &graphql.Field{Type: graphql.String},
			"color":  &graphql.Field{Type: graphql.String},
			"size":   &graphql.Field{Type: graphql.Float},
			"mode":   &graphql.Field{Type: graphql.String},
			"points": &graphql.Field{Type: graphql.NewList(pointType)},
		},
	})

	drawingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Drawing",
		Fields: graphql.Fields{
			"owner":       &graphql.Field{Type: graphql.String},
			"strokeCount": &graphql.Field{Type: graphql.Int},
			"pointCount":  &graphql.Field{Type: graphql.Int},
			"strokes":     &graphql.Field{Type: graphql.NewList(strokeType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"owners": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Every owner with a saved drawing, sorted by name",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Drawings.Owners(p.Context)
				},
			},
			"drawings": &graphql.Field{
				Type:        graphql.NewList(drawingType),
				Description: "Every saved drawing",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := deps.Drawings.All(p.Context)
					if err != nil {
						return nil, err
					}
					return drawingList(snap), nil
				},
			},
			"drawing": &graphql.Field{
				Type:        drawingType,
				Description: "One owner's drawing",
				Args: graphql.FieldConfigArgument{
					"owner": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					owner := p.Args["owner"].(string)
					snap, err := deps.Drawings.All(p.Context)
					if err != nil {
						return nil, err
					}
					rec, ok := snap[owner]
					if !ok {
						return nil, nil
					}
					return drawingMap(owner, rec), nil
				},
			},
			"drawingsNear": &graphql.Field{
				Type:        graphql.NewList(drawingType),
				Description: "Drawings with at least one point within radius metres",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 500.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					snap, err := deps.Drawings.Near(p.Context, lat, lon, radius)
					if err != nil {
						return nil, err
					}
					return drawingList(snap), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func drawingList(snap domain.Snapshot) []map[string]interface{} {
	owners := make([]string, 0, len(snap))
	for owner := range snap {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	out := make([]map[string]interface{}, 0, len(owners))
	for _, owner := range owners {
		out = append(out, drawingMap(owner, snap[owner]))
	}
	return out
}

func drawingMap(owner string, rec domain.DrawingRecord) map[string]interface{} {
	strokes := make([]map[string]interface{}, 0, len(rec.Strokes))
	for _, s := range rec.Strokes {
		points := make([]map[string]interface{}, 0, len(s.Points))
		for _, p := range s.Points {
			points = append(points, map[string]interface{}{"lat": p.Lat, "lon": p.Lon})
		}
		strokes = append(strokes, map[string]interface{}{
			"id":     s.ID,
			"owner":  s.Owner,
			"color":  s.Color,
			"size":   s.Size,
			"mode":   string(s.Mode),
			"points": points,
		})
	}
	return map[string]interface{}{
		"owner":       owner,
		"strokeCount": len(rec.Strokes),
		"pointCount":  rec.PointCount(),
		"strokes":     strokes,
	}
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

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
